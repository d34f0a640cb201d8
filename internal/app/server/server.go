package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"sierrawbs/internal/domain/payroll"
	"sierrawbs/internal/platform/config"
	"sierrawbs/internal/platform/db"
	"sierrawbs/internal/platform/jobs"
	"sierrawbs/internal/platform/logging"
	"sierrawbs/internal/platform/metrics"
	"sierrawbs/internal/platform/spreadsheet"
	"sierrawbs/internal/platform/tables"
	payrollhandler "sierrawbs/internal/transport/http/handlers/payroll"
	"sierrawbs/internal/transport/http/middleware"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type App struct {
	Config  config.Config
	DB      *db.Pool
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Service *payroll.Service
}

// New loads the lookup tables, connects the optional run-history database and
// assembles the router. The tables are validated here so a bad roster or
// policy file stops the process before it accepts traffic.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	bundle, err := tables.Load(tables.Paths{
		Roster:           cfg.RosterPath,
		RosterOrder:      cfg.RosterOrderPath,
		NameOverrides:    cfg.NameOverridesPath,
		OvertimePolicies: cfg.OvertimePolicyPath,
		ColumnAliases:    cfg.ColumnAliasesPath,
	}, cfg.OvertimePolicy)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	if err := payroll.ValidateRoster(bundle.Roster); err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	ratePolicy, err := payroll.ParseRatePolicy(cfg.RatePolicy)
	if err != nil {
		return nil, err
	}
	proxies, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, Metrics: metrics.New()}
	app.Jobs = jobs.New(cfg.RunHistoryQueueSize, app.Metrics)

	var (
		recorder payroll.RunRecorder
		runs     payroll.RunStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, db.Migrations()); err != nil {
				pool.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		app.DB = pool
		store := db.NewRunStore(pool)
		recorder = jobs.NewRecorder(app.Jobs, store)
		runs = store
	} else {
		slog.Warn("DATABASE_URL not set; run history disabled")
	}

	app.Service = payroll.NewService(payroll.ConvertOptions{
		Aliases:    bundle.Aliases,
		Overrides:  bundle.Overrides,
		Roster:     bundle.Roster,
		Policies:   bundle.Policies,
		RatePolicy: ratePolicy,
	}, recorder)

	handler := payrollhandler.NewHandler(app.Service, runs, app.Metrics, payrollhandler.Options{
		Version: Version,
		Read: spreadsheet.Options{
			SheetName:      cfg.SheetName,
			HeaderScanRows: cfg.HeaderScanRows,
			Aliases:        bundle.Aliases,
		},
		Client: spreadsheet.WBSHeader{
			ClientID:   cfg.WBSClientID,
			ClientName: cfg.WBSClientName,
			Frequency:  cfg.WBSPayFrequency,
		},
		RequireAuth:     cfg.JWTSecret != "",
		UploadRateLimit: cfg.RateLimitPerMinute,
		TrustedProxies:  proxies,
	})
	app.Router = app.routes(handler)

	slog.Info("tables loaded",
		"roster", len(bundle.Roster),
		"overrides", len(bundle.Overrides),
		"overtimePolicy", bundle.Policies.Default.Name,
		"employeePolicies", len(bundle.Policies.PerEmployee),
		"ratePolicy", ratePolicy,
	)
	return app, nil
}

func (a *App) routes(handler *payrollhandler.Handler) http.Handler {
	cfg := a.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(slog.Default(), a.Metrics))
	router.Use(chimw.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := a.DB.Ping(ctx); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", a.Metrics.Handler())
	}

	router.Route("/api/v1", handler.RegisterRoutes)
	return router
}

func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests and the
// run-history queue before closing the database.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()
	app.Jobs.Start(jobsCtx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("graceful shutdown failed", "err", err)
	}
	stopJobs()
	app.Jobs.Wait()
	return nil
}
