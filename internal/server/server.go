package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phakpoomachalanan/WebIR/internal/analysis"
	"github.com/phakpoomachalanan/WebIR/internal/analytics"
	"github.com/phakpoomachalanan/WebIR/internal/cache"
	"github.com/phakpoomachalanan/WebIR/pkg/config"
	"github.com/phakpoomachalanan/WebIR/pkg/health"
	"github.com/phakpoomachalanan/WebIR/pkg/kafka"
	"github.com/phakpoomachalanan/WebIR/pkg/logger"
	"github.com/phakpoomachalanan/WebIR/pkg/metrics"
	"github.com/phakpoomachalanan/WebIR/pkg/middleware"
	"github.com/phakpoomachalanan/WebIR/pkg/postgres"
	"github.com/phakpoomachalanan/WebIR/pkg/redis"
)

// refreshInterval is how often the server checks whether the index on disk
// has advanced past its current snapshot.
const refreshInterval = 5 * time.Second

// Server is the serve-mode process: the HTTP surface, the snapshot refresh
// loop, and the optional analytics pipeline.
type Server struct {
	cfg        *config.Config
	view       *IndexView
	analyzers  *analysis.Selector
	metrics    *metrics.Metrics
	queryCache *cache.QueryCache

	redisClient *redis.Client
	pgClient    *postgres.Client
	producer    *kafka.Producer
	consumer    *kafka.Consumer
	collector   *analytics.Collector
	aggregator  *analytics.Aggregator
	store       *analytics.Store

	httpSrv *http.Server
	log     *slog.Logger
}

// New wires a Server from configuration. Optional backends (Redis, Kafka,
// Postgres) are connected only when enabled; failure to reach an enabled
// backend is an error rather than a silent degrade.
func New(cfg *config.Config, analyzers *analysis.Selector) (*Server, error) {
	view, err := OpenView(cfg.Index.Dir)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		view:      view,
		analyzers: analyzers,
		metrics:   metrics.New(),
		log:       logger.WithComponent("server"),
	}

	if cfg.Redis.Enabled {
		s.redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			view.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
	}
	s.queryCache = cache.New(s.redisClient, cfg.Redis.CacheTTL, s.metrics)

	if cfg.Kafka.Enabled {
		s.producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.SearchEvents)
		s.collector = analytics.NewCollector(s.producer, cfg.Analytics.BufferSize)
		s.aggregator = analytics.NewAggregator()
		s.consumer = kafka.NewConsumer(cfg.Kafka, cfg.Kafka.SearchEvents, s.aggregator.Handle)
	}

	if cfg.Postgres.Enabled {
		s.pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			s.shutdownBackends()
			view.Close()
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		s.store = analytics.NewStore(s.pgClient)
	}

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		gen := s.view.Generation()
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("generation %d", gen),
		}
	})
	if s.redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := s.redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	if s.pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := s.pgClient.DB.PingContext(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/search", NewSearchHandler(
		s.cfg.Search, s.view, s.analyzers, s.queryCache, s.collector, s.metrics))
	mux.Handle("/stats", NewStatsHandler(s.aggregator, s.store))
	mux.HandleFunc("/healthz", checker.LiveHandler())
	mux.HandleFunc("/readyz", checker.ReadyHandler())
	if s.cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.Timeout(s.cfg.Search.Timeout)(handler)
	handler = middleware.Metrics(s.metrics)(handler)
	handler = middleware.RequestID(handler)
	return handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		s.refreshLoop(ctx)
		return nil
	})

	if s.consumer != nil {
		g.Go(func() error {
			return s.consumer.Start(ctx)
		})
	}
	if s.aggregator != nil && s.store != nil {
		g.Go(func() error {
			initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := s.store.EnsureSchema(initCtx)
			cancel()
			if err != nil {
				return err
			}
			s.aggregator.RunSnapshots(ctx, s.store, s.cfg.Analytics.SnapshotInterval)
			return nil
		})
	}

	err := g.Wait()
	s.shutdownBackends()
	s.view.Close()
	s.log.Info("server stopped")
	return err
}

// refreshLoop swaps in fresh snapshots as commits land, invalidating the
// query cache each time the visible index changes.
func (s *Server) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			swapped, err := s.view.Refresh()
			if err != nil {
				s.log.Warn("snapshot refresh failed", "error", err)
				continue
			}
			if swapped {
				s.metrics.SegmentsActive.Set(float64(s.view.Searcher().Reader().SegmentCount()))
				flushCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				if err := s.queryCache.Invalidate(flushCtx); err != nil {
					s.log.Warn("cache invalidation failed", "error", err)
				}
				cancel()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) shutdownBackends() {
	if s.collector != nil {
		s.collector.Close()
	}
	if s.producer != nil {
		s.producer.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pgClient != nil {
		s.pgClient.Close()
	}
}
