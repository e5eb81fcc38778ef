package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"expensehq.app/web/common/id"
	"expensehq.app/web/common/logger"
	"expensehq.app/web/common/otel"
	"expensehq.app/web/core/config"
	"expensehq.app/web/core/db"
	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/backend/postgres"
	"expensehq.app/web/internal/backend/supabase"
	"expensehq.app/web/internal/http/middleware"
	httprouter "expensehq.app/web/internal/http/router"
	"expensehq.app/web/internal/http/view"
	"expensehq.app/web/internal/session"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, cfg.Env)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "expensehq starting", "env", cfg.Env, "data_backend", cfg.DataBackend)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var data backend.DataAPI
	if cfg.DataBackend == config.DataBackendPostgres && cfg.Backend.IsConfigured() {
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			slog.ErrorContext(ctx, "failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer database.Close()
		slog.InfoContext(ctx, "database connected")
		data = postgres.New(database)
	}

	gateway, err := backend.NewGateway(
		backend.Config{URL: cfg.Backend.URL, AnonKey: cfg.Backend.AnonKey},
		supabase.Builder(data, supabase.WithTimeout(cfg.Backend.Timeout)),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build backend client", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := newRouter(cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up router", "error", err)
		os.Exit(1)
	}

	var apps *app.Manager
	if handle, err := gateway.Handle(); err != nil {
		slog.WarnContext(ctx, "backend not configured, serving remediation page", "missing", gateway.Missing())
		httprouter.SetupRemediation(router, gateway.Missing())
	} else {
		handle = backend.Instrument(handle, backend.NewMetrics(registry))

		store, closeStore, err := newSessionStore(ctx, cfg.Session)
		if err != nil {
			slog.ErrorContext(ctx, "failed to set up session store", "error", err)
			os.Exit(1)
		}
		defer closeStore()

		notifier := auth.NewNotifier()
		authService := auth.NewService(handle, store, notifier, cfg.SiteURL)
		apps = app.NewManager(handle, authService, notifier)

		evictCtx, stopEviction := context.WithCancel(ctx)
		defer stopEviction()
		go apps.Run(evictCtx, cfg.Session.IdleTimeout)

		httprouter.SetupRoutes(router, apps, authService, httprouter.RouterConfig{
			IsProduction: cfg.IsProduction(),
			SessionTTL:   cfg.Session.TTL,
			Metrics:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		})
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Backend.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port, "site_url", cfg.SiteURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if apps != nil {
		apps.Close()
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func newRouter(cfg config.Config) (*gin.Engine, error) {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	tmpl, err := view.Templates()
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)
	return router, nil
}

// newSessionStore uses redis when REDIS_URL is set so sessions survive restarts.
func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func(), error) {
	if !cfg.RedisEnabled() {
		slog.InfoContext(ctx, "using in-memory session store")
		return session.NewMemoryStore(cfg.TTL), func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	slog.InfoContext(ctx, "redis connected", "prefix", cfg.KeyPrefix)

	return session.NewRedisStore(client, cfg.KeyPrefix, cfg.TTL), func() { _ = client.Close() }, nil
}

const banner = `
 _____                                 _   _  ___
| ____|_  ___ __   ___ _ __  ___  ___ | | | |/ _ \
|  _| \ \/ / '_ \ / _ \ '_ \/ __|/ _ \| |_| | | | |
| |___ >  <| |_) |  __/ | | \__ \  __/|  _  | |_| |
|_____/_/\_\ .__/ \___|_| |_|___/\___||_| |_|\__\_\
           |_|
`
