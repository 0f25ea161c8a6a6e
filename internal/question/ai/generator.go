package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/question"
)

// Config holds connection details for the question-generation service.
type Config struct {
	GeneratorURL string
	GeneratorKey string
	Timeout      time.Duration
}

// Generator implements question.Generator against the external
// text-generation service.
type Generator struct {
	httpClient  *http.Client
	config      Config
	logger      zerolog.Logger
	generateURL string
}

func NewGenerator(cfg Config, logger zerolog.Logger) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	base := strings.TrimSuffix(cfg.GeneratorURL, "/")

	return &Generator{
		httpClient:  &http.Client{Timeout: timeout},
		config:      cfg,
		logger:      logger.With().Str("component", "question_generator").Logger(),
		generateURL: base + "/generate",
	}
}

// Generate synchronously requests a question batch and normalizes it.
func (g *Generator) Generate(ctx context.Context, req question.BatchRequest) ([]question.Question, error) {
	if g.config.GeneratorURL == "" {
		return nil, fmt.Errorf("generator endpoint not configured")
	}

	payload := generatorRequest{
		GameType:    req.GameType,
		Difficulty:  req.Difficulty,
		Count:       req.Rounds,
		Language:    req.Language,
		Topic:       req.Topic,
		Personality: req.Personality,
		Seed:        req.Seed,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.config.GeneratorKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.config.GeneratorKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	var genResp generatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, fmt.Errorf("decode generator payload: %w", err)
	}

	questions := make([]question.Question, 0, len(genResp.Questions))
	for _, q := range genResp.Questions {
		normalized, ok := normalize(q, req)
		if !ok {
			g.logger.Warn().Str("prompt", q.Question).Msg("dropping malformed generated question")
			continue
		}
		questions = append(questions, normalized)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("generator returned empty question set")
	}

	return questions, nil
}

// normalize rejects questions whose answer index falls outside the options.
func normalize(q generatedQuestion, req question.BatchRequest) (question.Question, bool) {
	if q.Question == "" || len(q.Options) < 2 {
		return question.Question{}, false
	}
	if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
		return question.Question{}, false
	}

	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = req.Difficulty
	}
	category := q.Category
	if category == "" {
		category = req.Topic
	}

	return question.Question{
		Prompt:      q.Question,
		Options:     q.Options,
		AnswerIndex: q.CorrectAnswer,
		Explanation: q.Explanation,
		Difficulty:  difficulty,
		Category:    category,
		Source:      "ai",
	}, true
}

type generatorRequest struct {
	GameType    string `json:"game_type"`
	Difficulty  string `json:"difficulty"`
	Count       int    `json:"count"`
	Language    string `json:"language"`
	Topic       string `json:"topic"`
	Personality string `json:"personality"`
	Seed        string `json:"seed"`
}

type generatedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
}

type generatorResponse struct {
	Questions []generatedQuestion `json:"questions"`
}
