package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"minato-game-service"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres  Postgres
	Redis     Redis
	Security  Security
	Game      Game
	Generator Generator
	Billing   Billing
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
}

// Redis holds cache configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for verifying identity-provider tokens.
type Security struct {
	SessionSecret string `env:"SESSION_TOKEN_SECRET,notEmpty"`
	SessionIssuer string `env:"SESSION_TOKEN_ISSUER" envDefault:"minato-identity"`
}

// Game groups gameplay defaults and the auto-advance policy.
type Game struct {
	AutoAdvanceScanInterval time.Duration `env:"AUTO_ADVANCE_SCAN_INTERVAL" envDefault:"2s"`
	QuestionCacheTTL        time.Duration `env:"QUESTION_CACHE_TTL" envDefault:"10m"`
	LeaderboardTopN         int           `env:"LEADERBOARD_TOP" envDefault:"50"`
}

// Generator configures the question-generation service.
type Generator struct {
	URL         string        `env:"QUESTION_GENERATOR_URL"`
	APIKey      string        `env:"QUESTION_GENERATOR_API_KEY"`
	HTTPTimeout time.Duration `env:"QUESTION_GENERATOR_TIMEOUT" envDefault:"8s"`
}

// Billing configures the subscription-status provider.
type Billing struct {
	URL         string        `env:"BILLING_API_URL"`
	APIKey      string        `env:"BILLING_API_KEY"`
	HTTPTimeout time.Duration `env:"BILLING_HTTP_TIMEOUT" envDefault:"4s"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
