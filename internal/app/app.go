package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/billing"
	"github.com/minato-app/game-service/internal/config"
	"github.com/minato-app/game-service/internal/db/repository"
	"github.com/minato-app/game-service/internal/identity"
	"github.com/minato-app/game-service/internal/leaderboard"
	"github.com/minato-app/game-service/internal/logging"
	"github.com/minato-app/game-service/internal/prize"
	"github.com/minato-app/game-service/internal/question"
	"github.com/minato-app/game-service/internal/question/ai"
	"github.com/minato-app/game-service/internal/question/external"
	"github.com/minato-app/game-service/internal/room"
	"github.com/minato-app/game-service/internal/server"
	"github.com/minato-app/game-service/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	autoAdvance *room.AutoAdvanceWorker
	bgCancels   []context.CancelFunc
}

// New bootstraps config, logger, Postgres, Redis, and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	connString := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=10",
		cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Database, cfg.Postgres.SSLMode)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	verifier := identity.NewVerifier([]byte(cfg.Security.SessionSecret), cfg.Security.SessionIssuer)

	roomRepo := repository.NewRoomRepository(pool)
	prizeRepo := repository.NewPrizeRepository(pool)

	// Question pipeline: Redis cache -> generator -> stock fallback
	questionCache := question.NewCache(redisClient, cfg.Game.QuestionCacheTTL)
	fallback := external.NewOpenTDBClient("", nil)
	var generator question.Generator
	if cfg.Generator.URL != "" {
		generator = ai.NewGenerator(ai.Config{
			GeneratorURL: cfg.Generator.URL,
			GeneratorKey: cfg.Generator.APIKey,
			Timeout:      cfg.Generator.HTTPTimeout,
		}, logger)
	} else {
		logger.Warn().Msg("question generator not configured; serving stock questions only")
	}
	questionSvc := question.NewService(questionCache, generator, fallback, logger)

	billingClient := billing.NewClient(billing.Config{
		BaseURL: cfg.Billing.URL,
		APIKey:  cfg.Billing.APIKey,
		Timeout: cfg.Billing.HTTPTimeout,
	}, logger)

	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN: cfg.Game.LeaderboardTopN,
	})

	wsHub := ws.NewHub(logger)
	events := room.NewEvents(wsHub, logger)

	roomSvc := room.NewService(
		roomRepo,
		questionSvc,
		billingClient,
		leaderboardSvc,
		events,
		room.ServiceOptions{},
		logger,
	)

	prizeSvc := prize.NewService(prizeRepo, logger)

	roomHandlers := room.NewHTTPHandlers(roomSvc, logger)
	prizeHandlers := prize.NewHTTPHandlers(prizeSvc, logger)
	lbHandlers := leaderboard.NewHTTPHandlers(leaderboardSvc, roomSvc, logger)
	wsHandler := room.NewWSHandler(wsHub, roomSvc, verifier, logger)

	apiServer := server.NewHTTPServer(
		cfg, logger, pool, redisClient, verifier, wsHandler,
		roomHandlers, prizeHandlers, lbHandlers,
	)

	autoAdvance := room.NewAutoAdvanceWorker(roomSvc, redisClient, cfg.Game.AutoAdvanceScanInterval, logger)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		autoAdvance: autoAdvance,
		bgCancels:   make([]context.CancelFunc, 0, 1),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.autoAdvance != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.autoAdvance.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("auto-advance worker stopped")
			}
		}()
	}
}
