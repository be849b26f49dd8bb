package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"apar/internal/domain/audit"
	"apar/internal/domain/auth"
	"apar/internal/domain/kpi"
	"apar/internal/domain/weights"
	"apar/internal/domain/weightsource"
	"apar/internal/platform/config"
	"apar/internal/platform/db"
	"apar/internal/platform/events"
	"apar/internal/platform/genai"
	"apar/internal/platform/jobs"
	"apar/internal/platform/metrics"
	audithandler "apar/internal/transport/http/handlers/audit"
	kpihandler "apar/internal/transport/http/handlers/kpi"
	"apar/internal/transport/http/middleware"
)

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector

	closers []func()
}

// NewLogger builds the JSON logger used by the server and installs it as the
// slog default.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}

// New wires stores, services and the router for cfg.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Metrics: metrics.New()}

	catalog, err := loadCatalog(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	var (
		kpiStore    kpi.StoreAPI
		runStore    jobs.RunStore
		auditStore  audit.Store
		idempotency middleware.IdempotencyStore
		perms       middleware.PermissionStore
	)
	switch cfg.StoreDriver {
	case config.StoreMemory:
		kpiStore = kpi.NewMemoryStore()
		runStore = jobs.NewMemoryRunStore()
		auditStore = audit.NewMemoryStore()
		idempotency = middleware.NewMemoryIdempotencyStore()
		perms = auth.StaticPermissions{}
	default:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		app.DB = pool
		app.closers = append(app.closers, pool.Close)
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool); err != nil {
				app.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		tenantID, err := db.Seed(ctx, pool, cfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
		logger.Info("seed complete", "tenantId", tenantID)
		kpiStore = kpi.NewStore(pool)
		runStore = jobs.NewPGRunStore(pool)
		auditStore = audit.NewPGStore(pool)
		idempotency = middleware.NewPGIdempotencyStore(pool)
		perms = auth.NewStore(pool)
	}

	var source weightsource.Source = weightsource.DefaultSource{Catalog: catalog}
	client := genai.NewClient(cfg.GenAIEndpoint, cfg.GenAIModel, cfg.GenAIAPIKey, cfg.GenAITimeout)
	if client.Configured() {
		source = weightsource.GenAISource{Client: client, Catalog: catalog}
	} else {
		logger.Info("genai not configured, using catalog default weights")
	}
	resolver := weightsource.NewResolver(source, catalog, cfg.GenAITimeout)

	var publisher kpi.Publisher = events.LogPublisher{}
	if cfg.NATSURL != "" {
		natsPublisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("nats connect: %w", err)
		}
		app.closers = append(app.closers, natsPublisher.Close)
		publisher = natsPublisher
	}

	svc := kpi.NewService(kpiStore, resolver)
	svc.Catalog = catalog
	svc.Events = publisher
	svc.Metrics = app.Metrics
	svc.RolloutConcurrency = cfg.RolloutConcurrency

	app.Jobs = jobs.New(runStore)
	auditSvc := audit.New(auditStore)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(app.Metrics))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret, logger))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if app.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := app.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", app.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		kpiHandler := kpihandler.NewHandler(svc, perms, auditSvc, app.Jobs, idempotency)
		kpiHandler.RegisterRoutes(r)

		auditHandler := audithandler.NewHandler(auditSvc, perms)
		auditHandler.RegisterRoutes(r)
	})

	app.Router = router
	return app, nil
}

func loadCatalog(path string) (*weights.Catalog, error) {
	if path == "" {
		return weights.DefaultCatalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kpi catalog: %w", err)
	}
	catalog, err := weights.LoadCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse kpi catalog %s: %w", path, err)
	}
	return catalog, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run loads configuration, serves HTTP until ctx is cancelled and then shuts
// down gracefully.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := NewLogger(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return err
	}

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	jobCtx, stopJobs := context.WithCancel(context.Background())
	app.Jobs.Start(jobCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("apar server listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stopJobs()
		app.Jobs.Wait()
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	stopJobs()
	app.Jobs.Wait()
	return err
}
