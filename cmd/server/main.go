package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"evalprof/internal/api"
	"evalprof/internal/cache"
	"evalprof/internal/config"
	"evalprof/internal/device"
	"evalprof/internal/logs"
	"evalprof/internal/metrics"
	"evalprof/internal/ratelimit"
	"evalprof/internal/session"
	"evalprof/internal/store"
	"evalprof/internal/ttl"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Root context, cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Logger
	logger := logs.NewLogger(cfg.Log.Buffer, logs.ParseLevel(cfg.Log.Level))
	logger.Mirror(os.Stderr)

	// Metrics
	metricsRegistry := metrics.NewRegistry()

	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	bridge, err := metrics.NewOTelBridge(otel.Meter("evalprof"), metricsRegistry)
	if err != nil {
		log.Fatalf("otel bridge: %v", err)
	}

	// Store
	st, closeStore, err := openStore(ctx, cfg.Storage, metricsRegistry)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	logger.Infof("storage backend: %s", cfg.Storage.Backend)

	// Cache
	c := cache.New(ctx, st, logger, metricsRegistry)

	// Rate limiter
	limiter := ratelimit.NewLimiter(metricsRegistry)

	// Sessions
	secret := cfg.Session.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("session.secret not set; sessions will not survive a restart")
	}
	sessions, err := session.NewManager(secret, cfg.Session.TTL, metricsRegistry)
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}

	// Background cleaners
	cacheCleaner := ttl.NewCleaner(
		"cache",
		ttl.SweepFunc(c.ClearExpired),
		cfg.Cache.SweepInterval,
		logger,
		metricsRegistry,
	)
	go cacheCleaner.Start(ctx)

	limitCleaner := ttl.NewCleaner(
		"ratelimit",
		ttl.SweepFunc(func(context.Context) int { return limiter.Prune() }),
		cfg.RateLimit.SweepInterval,
		logger,
		metricsRegistry,
	)
	go limitCleaner.Start(ctx)

	// API
	handler := api.NewHandler(
		c,
		limiter,
		device.NewIdentity(logger, metricsRegistry),
		sessions,
		cfg.RateLimit.Policies,
		metricsRegistry,
		logger,
	)
	if cfg.Server.CookieSecure {
		handler.WithSecureCookies()
	}
	if cfg.Server.AdminToken == "" {
		logger.Warn("server.admin_token not set; admin api disabled")
	}
	handler.WithAdminToken(cfg.Server.AdminToken)
	if usage, ok := st.(*store.Memory); ok {
		handler.WithStorageUsage(usage)
	}

	server := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      api.NewRouter(handler),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.Infof("server started on %s", cfg.Server.Listen)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	_ = bridge.Close()
	_ = provider.Shutdown(context.Background())
	if err := closeStore(); err != nil {
		logger.Warnf("close store: %v", err)
	}
	logger.Info("server stopped")
}

func openStore(
	ctx context.Context,
	cfg config.StorageConfig,
	metricsRegistry *metrics.Registry,
) (store.Store, func() error, error) {
	if cfg.Backend != config.BackendRedis {
		return store.NewMemory(cfg.QuotaBytes, metricsRegistry), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	st, err := store.NewRedis(ctx, client, cfg.Redis.KeyPrefix, cfg.RetryPolicy(), metricsRegistry)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return st, client.Close, nil
}
