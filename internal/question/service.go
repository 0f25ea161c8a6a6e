package question

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BatchCache defines cache behavior (implemented by the Redis-backed Cache).
type BatchCache interface {
	Get(ctx context.Context, req BatchRequest) (*Batch, error)
	Set(ctx context.Context, req BatchRequest, batch Batch) error
}

// Generator produces questions from the external text-generation service.
type Generator interface {
	Generate(ctx context.Context, req BatchRequest) ([]Question, error)
}

// FallbackProvider supplies stock questions when the generator is down.
type FallbackProvider interface {
	Fetch(ctx context.Context, amount int, category, difficulty string) ([]Question, error)
}

// Service assembles fixed-length question batches: cache -> generator ->
// stock fallback. A batch shorter than requested is an error; callers rely on
// len(questions) == rounds.
type Service struct {
	cache     BatchCache
	generator Generator
	fallback  FallbackProvider
	logger    zerolog.Logger
}

func NewService(cache BatchCache, generator Generator, fallback FallbackProvider, logger zerolog.Logger) *Service {
	return &Service{
		cache:     cache,
		generator: generator,
		fallback:  fallback,
		logger:    logger.With().Str("component", "question_service").Logger(),
	}
}

// FetchBatch returns exactly req.Rounds questions or an error.
func (s *Service) FetchBatch(ctx context.Context, req BatchRequest) ([]Question, error) {
	if req.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", req.Rounds)
	}

	if !req.SkipCache && s.cache != nil {
		if cached, err := s.cache.Get(ctx, req); err == nil && cached != nil && len(cached.Questions) >= req.Rounds {
			return cached.Questions[:req.Rounds], nil
		}
	}

	var result []Question
	if s.generator != nil {
		generated, err := s.generator.Generate(ctx, req)
		if err != nil {
			s.logger.Warn().Err(err).Str("game_type", req.GameType).Msg("generator failed, trying fallback")
		} else {
			result = generated
		}
	}

	if len(result) < req.Rounds && s.fallback != nil {
		stock, err := s.fallback.Fetch(ctx, req.Rounds-len(result), req.Topic, req.Difficulty)
		if err != nil {
			s.logger.Warn().Err(err).Msg("fallback provider failed")
		} else {
			result = append(result, stock...)
		}
	}

	if len(result) < req.Rounds {
		return nil, fmt.Errorf("insufficient questions: need %d got %d", req.Rounds, len(result))
	}
	result = result[:req.Rounds]

	if !req.SkipCache && s.cache != nil {
		batch := Batch{
			Questions: result,
			Seed:      req.Seed,
			ExpiresAt: time.Now().Add(defaultCacheTTL).Unix(),
		}
		if err := s.cache.Set(ctx, req, batch); err != nil {
			s.logger.Warn().Err(err).Msg("failed to cache question batch")
		}
	}

	return result, nil
}
