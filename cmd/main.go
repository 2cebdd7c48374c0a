package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/b24stats/internal/adapters/bitrix"
	"github.com/okian/b24stats/internal/adapters/http/api"
	"github.com/okian/b24stats/internal/adapters/http/site"
	"github.com/okian/b24stats/internal/adapters/http/swagger"
	app "github.com/okian/b24stats/internal/app"
	"github.com/okian/b24stats/internal/config"
	"github.com/okian/b24stats/pkg/logger"
	"github.com/okian/b24stats/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	writeTimeoutSlack         = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	srv, err := newHTTPServer(ctx, cfg)
	if err != nil {
		loggerInstance.Error(ctx, "failed to build server", logger.Error(err))
		os.Exit(1)
	}

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// newService builds the statistics service. Without a webhook the service
// still starts; report requests then fail with 503.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	opts := []app.Option{
		app.WithLogger(logger.Named("service")),
		app.WithParallelFetch(cfg.ParallelFetch),
		app.WithFetchTimeout(cfg.FetchTimeout()),
	}

	if cfg.WebhookURL == "" {
		logger.Get().Warn(ctx, "no webhook_url configured; statistics requests will fail until one is set")
		return app.New(opts...), nil
	}

	client, err := bitrix.New(cfg.WebhookURL,
		bitrix.WithTimeout(cfg.RequestTimeout()),
		bitrix.WithMaxPages(cfg.MaxPages),
		bitrix.WithLogger(logger.Named("bitrix")),
	)
	if err != nil {
		return nil, err
	}
	return app.New(append(opts, app.WithFetcher(client))...), nil
}

// newHTTPServer wires the service, API, docs and dashboard routes.
func newHTTPServer(ctx context.Context, cfg *config.Config) (*http.Server, error) {
	svc, err := newService(ctx, cfg)
	if err != nil {
		return nil, err
	}

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger.Slog(),
	})

	apiServer := api.NewServer(svc, svc,
		api.WithCompareByDefault(cfg.CompareByDefault),
		api.WithLogger(logger.Named("api")),
	)
	apiServer.Register(ctx, router)
	swagger.Register(ctx, router)
	site.Register(ctx, router)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.FetchTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Average GC pause over the process lifetime
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
