package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cylroute/internal/config"
	"cylroute/internal/metrics"
	"cylroute/internal/opt"
	"cylroute/internal/store"
)

type Server struct {
	Store   store.Store
	Broker  EventBroker
	Planner opt.Planner
	Origin  opt.Point
	Config  config.Config

	// background tuning runs live until Close
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer wires a Server from cfg. Without a database URL or SQLite path
// plans live in memory; without REDIS_URL events stay in process.
func NewServer(cfg config.Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		cancel()
		return nil, err
	}
	var broker EventBroker = NewBroker()
	if cfg.API.RedisURL != "" {
		if rb, err := NewRedisBroker(cfg.API.RedisURL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker disabled: %v", err)
		}
	}
	metrics.RegisterDefault()
	return &Server{
		Store:   st,
		Broker:  broker,
		Planner: cfg.Planner(),
		Origin:  cfg.Origin,
		Config:  cfg,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

func openStore(ctx context.Context, c config.Store) (store.Store, error) {
	switch {
	case strings.TrimSpace(c.DatabaseURL) != "":
		pg, err := store.NewPostgres(c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if c.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = pg.Close()
				return nil, err
			}
		}
		return pg, nil
	case strings.TrimSpace(c.SQLitePath) != "":
		return store.NewSQLite(ctx, c.SQLitePath)
	default:
		return store.NewMemory(), nil
	}
}

// Routes returns the full handler tree with logging, metrics and rate limiting.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Plans
	mux.HandleFunc("/v1/plans", s.PlansHandler)
	mux.HandleFunc("/v1/plans/", s.PlanByIDHandler) // includes /commands, /replay

	// Tuning runs
	mux.HandleFunc("/v1/tune", s.TuneHandler)
	mux.HandleFunc("/v1/tune/", s.TuneByIDHandler) // includes /events/stream

	// Health
	mux.HandleFunc("/healthz", s.HealthHandler)
	mux.HandleFunc("/readyz", s.ReadyHandler)

	// Ops
	mux.HandleFunc("/debug/vars.json", s.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return logMiddleware(rateLimit(s.Config.API.RateRPS, s.Config.API.RateBurst, mux))
}

// Close cancels running tuning runs, waits for them to persist their final
// state and releases the store and broker.
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	if c, ok := s.Broker.(io.Closer); ok {
		_ = c.Close()
	}
	return s.Store.Close()
}
