package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/adoptfeed/internal/api"
	"github.com/onnwee/adoptfeed/internal/auth"
	"github.com/onnwee/adoptfeed/internal/config"
	"github.com/onnwee/adoptfeed/internal/db"
	"github.com/onnwee/adoptfeed/internal/decision"
	"github.com/onnwee/adoptfeed/internal/feed"
	"github.com/onnwee/adoptfeed/internal/geo"
	"github.com/onnwee/adoptfeed/internal/health"
	"github.com/onnwee/adoptfeed/internal/jobs"
	"github.com/onnwee/adoptfeed/internal/middleware"
	"github.com/onnwee/adoptfeed/internal/pet"
	"github.com/onnwee/adoptfeed/internal/profile"
	"github.com/onnwee/adoptfeed/internal/ranking"
	"github.com/onnwee/adoptfeed/internal/risk"
	"github.com/onnwee/adoptfeed/internal/tracing"
)

const serviceName = "adoptfeed-api"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.0.1"

// stores groups the persistence backends the handlers run on.
type stores struct {
	pets      pet.Repository
	profiles  profile.Store
	decisions decision.Store
	conn      *sql.DB
}

// app is the fully wired server. Close releases everything newApp opened.
type app struct {
	handler  http.Handler
	backfill *risk.BackfillJob
	closers  []func(context.Context) error
}

// newApp wires configuration into stores, services and the HTTP handler.
// Without a database URL it falls back to in-memory stores; without a Redis
// URL the rate limiters keep their state in process.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.Tracing.Enabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.Tracing.ExporterType,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
		InsecureMode:   cfg.Tracing.Insecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.closers = append(a.closers, tp.Shutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	httpMetrics := middleware.NewMetrics()
	feedMetrics := feed.NewMetrics()
	riskMetrics := risk.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for _, m := range []interface{ Register(prometheus.Registerer) error }{
		httpMetrics, feedMetrics, riskMetrics, jobMetrics,
	} {
		if err := m.Register(registry); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	st, err := a.openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	candidates := pet.NewBreakerRepository(st.pets, pet.DefaultBreakerConfig(), logger)
	registry.MustRegister(candidates.Collectors()...)

	healthCfg := api.HealthHandlersConfig{MetricsEnabled: true}
	if st.conn != nil {
		healthCfg.DBChecker = health.NewDBChecker(st.conn)
	}

	limitStore, err := a.openRateLimitStore(cfg, httpMetrics, logger, &healthCfg)
	if err != nil {
		return nil, err
	}

	centroids := geo.NewCentroidLookup(cfg.GeoDatasetPath, logger)
	healthCfg.CentroidCount = centroids.CountLoaded

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration unavailable, using default weights", "error", err)
	}

	engine := feed.NewEngine(ranking.NewScorer(weights), centroids, feed.Options{
		DefaultLimit:         cfg.Feed.DefaultLimit,
		MaxLimit:             cfg.Feed.MaxLimit,
		MaxCandidates:        cfg.Feed.MaxCandidates,
		BoostedRatio:         cfg.Feed.BoostedRatio,
		BoundingBoxPrefilter: cfg.Feed.BBoxPrefilter,
	}, logger)

	profiles := profile.NewService(st.profiles)
	feedSvc := feed.NewService(feed.ServiceConfig{
		Candidates: candidates,
		Profiles:   profiles,
		Exclusions: st.decisions,
		Engine:     engine,
		FetchLimit: cfg.Feed.FetchLimit,
		Metrics:    feedMetrics,
		Logger:     logger,
	})

	if cfg.Risk.BackfillEnabled {
		a.backfill = risk.NewBackfillJob(risk.BackfillJobConfig{
			Interval:   cfg.Risk.BackfillInterval,
			Timeout:    cfg.Risk.BackfillTimeout,
			Classifier: risk.NewClassifier(cfg.Risk.LongStayDays),
			Logger:     logger,
			Metrics:    riskMetrics,
			JobMetrics: jobMetrics,
		}, candidates)
	}

	globalLimit := middleware.DefaultGlobalLimit()
	globalLimit.RequestsPerWindow = cfg.RateLimit.RequestsPerMinute
	decisionLimit := middleware.DefaultDecisionLimit()
	decisionLimit.RequestsPerWindow = cfg.RateLimit.DecisionsPerMinute

	jwtSvc := auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)

	router := api.NewRouter(api.RouterConfig{
		Feed:          api.NewFeedHandlers(feedSvc),
		Profiles:      api.NewProfileHandlers(profiles),
		Decisions:     api.NewDecisionHandlers(candidates, st.decisions),
		Health:        api.NewHealthHandlers(healthCfg),
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		OptionalAuth:  middleware.Authenticate(jwtSvc, false),
		RequiredAuth:  middleware.Authenticate(jwtSvc, true),
		DecisionLimit: middleware.RateLimiter(limitStore, decisionLimit, middleware.UserKeyFunc(), httpMetrics),
		ServiceName:   serviceName,
		Version:       version,
	})

	// Outermost first: RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> RateLimiter.
	var handler http.Handler = router
	handler = middleware.RateLimiter(limitStore, globalLimit, middleware.IPKeyFunc(), httpMetrics)(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.AllowedOrigins(),
		MaxAge:         3600,
	})(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Tracing(serviceName)(handler)
	handler = middleware.Logging(logger)(handler)
	a.handler = middleware.RequestID(handler)

	return a, nil
}

// openStores connects to PostgreSQL when configured, otherwise returns
// empty in-memory stores.
func (a *app) openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("database_url not set, using in-memory stores")
		return stores{
			pets:      pet.NewInMemoryRepository(),
			profiles:  profile.NewInMemoryStore(),
			decisions: decision.NewInMemoryStore(),
		}, nil
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL, db.DefaultPoolConfig())
	if err != nil {
		return stores{}, err
	}
	a.closers = append(a.closers, func(context.Context) error { return conn.Close() })

	if err := db.Migrate(ctx, conn); err != nil {
		return stores{}, err
	}
	logger.Info("database ready")

	return stores{
		pets:      pet.NewPostgresRepository(conn, logger),
		profiles:  profile.NewPostgresStore(conn),
		decisions: decision.NewPostgresStore(conn),
		conn:      conn,
	}, nil
}

// openRateLimitStore returns a Redis-backed store when configured and
// registers its readiness check. The in-memory store is swept every five
// minutes until the app is closed.
func (a *app) openRateLimitStore(cfg *config.Config, metrics *middleware.Metrics, logger *slog.Logger, healthCfg *api.HealthHandlersConfig) (middleware.RateLimitStore, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		healthCfg.RedisChecker = health.NewRedisChecker(client)
		return middleware.NewRedisRateLimitStore(client, metrics, logger), nil
	}

	store := middleware.NewInMemoryRateLimitStore()
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.Cleanup()
			case <-stop:
				return
			}
		}
	}()
	a.closers = append(a.closers, func(context.Context) error {
		close(stop)
		return nil
	})
	return store, nil
}

// Start launches background jobs.
func (a *app) Start(ctx context.Context) error {
	if a.backfill == nil {
		return nil
	}
	return a.backfill.Start(ctx)
}

// Close stops background jobs and releases resources in reverse order of
// acquisition.
func (a *app) Close(ctx context.Context) error {
	if a.backfill != nil {
		a.backfill.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
