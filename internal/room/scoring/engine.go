package scoring

import (
	"math"
	"time"
)

// Config holds configurable scoring constants.
type Config struct {
	MaxScore        int // awarded for an instant correct answer, default: 100
	MinCorrectScore int // floor for any correct answer, default: 10
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxScore:        100,
		MinCorrectScore: 10,
	}
}

// Engine computes per-question scores. All answers for a question are scored
// together at advancement time so one rule applies to the whole field.
type Engine struct {
	config Config
}

// NewEngine creates a scoring engine with the provided config.
func NewEngine(config Config) *Engine {
	if config.MaxScore <= 0 {
		config = DefaultConfig()
	}
	if config.MinCorrectScore < 1 {
		config.MinCorrectScore = 1
	}
	if config.MinCorrectScore > config.MaxScore {
		config.MinCorrectScore = config.MaxScore
	}
	return &Engine{config: config}
}

// Score computes points for a single answer.
// Incorrect or absent answers score zero. Correct answers decay linearly from
// MaxScore (instant) toward MinCorrectScore (at or past the time limit); any
// correct answer earns at least MinCorrectScore.
func (e *Engine) Score(correct bool, timeTaken, timeLimit time.Duration) int {
	if !correct {
		return 0
	}
	if timeLimit <= 0 {
		return e.config.MaxScore
	}

	remaining := 1.0 - float64(timeTaken)/float64(timeLimit)
	if remaining < 0 {
		remaining = 0
	}
	if remaining > 1 {
		remaining = 1
	}

	spread := float64(e.config.MaxScore - e.config.MinCorrectScore)
	return e.config.MinCorrectScore + int(math.Round(spread*remaining))
}

// MaxScore exposes the configured ceiling for reporting.
func (e *Engine) MaxScore() int {
	return e.config.MaxScore
}
