// Package external wraps stock trivia providers used as a fallback when the
// question-generation service is unavailable.
package external

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/minato-app/game-service/internal/question"
)

// OpenTDBClient fetches stock questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ question.FallbackProvider = (*OpenTDBClient)(nil)

func NewOpenTDBClient(baseURL string, httpClient *http.Client) *OpenTDBClient {
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

type openTDBQuestion struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []openTDBQuestion `json:"results"`
}

// Fetch retrieves up to amount questions, returned in normalized form with
// options shuffled so the correct answer is not always last.
func (c *OpenTDBClient) Fetch(ctx context.Context, amount int, category, difficulty string) ([]question.Question, error) {
	values := url.Values{}
	values.Set("amount", fmt.Sprint(amount))
	values.Set("type", "multiple")
	if difficulty != "" {
		values.Set("difficulty", difficulty)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.ResponseCode != 0 {
		return nil, fmt.Errorf("opentdb response code %d", payload.ResponseCode)
	}

	questions := make([]question.Question, 0, len(payload.Results))
	for _, raw := range payload.Results {
		questions = append(questions, normalizeStock(raw))
	}
	return questions, nil
}

func normalizeStock(raw openTDBQuestion) question.Question {
	options := make([]string, 0, len(raw.IncorrectAnswers)+1)
	options = append(options, raw.IncorrectAnswers...)

	// Insert the correct answer at a random position.
	pos := rand.Intn(len(options) + 1)
	options = append(options, "")
	copy(options[pos+1:], options[pos:])
	options[pos] = raw.CorrectAnswer

	return question.Question{
		Prompt:      raw.Question,
		Options:     options,
		AnswerIndex: pos,
		Difficulty:  raw.Difficulty,
		Category:    raw.Category,
		Source:      "opentdb",
	}
}
