package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/minato-app/game-service/internal/config"
	"github.com/minato-app/game-service/internal/identity"
)

// RouteRegistrar attaches a handler group's routes to a mux.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

// NewHTTPServer wires base routes (health, metrics), the authenticated API
// surface, and the WebSocket event stream. The /v1 handlers sit behind the
// identity middleware; /ws carries its own token check because browsers
// cannot set headers on WebSocket dials.
func NewHTTPServer(
	cfg *config.App,
	logger zerolog.Logger,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	verifier *identity.Verifier,
	wsHandler http.Handler,
	registrars ...RouteRegistrar,
) *http.Server {
	api := http.NewServeMux()
	for _, reg := range registrars {
		reg.Register(api)
	}

	root := http.NewServeMux()

	root.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := pingDependencies(r.Context(), pool, rdb); err != nil {
			logger.Error().Err(err).Msg("dependency ping failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	root.Handle("/metrics", promhttp.Handler())

	if wsHandler != nil {
		root.Handle("/ws/rooms", wsHandler)
	}

	authenticated := identity.Middleware(verifier, logger)(api)
	root.Handle("/v1/", authenticated)

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: root,
	}
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) error {
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}
