// Package main is the entrypoint for the placeshare API server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/cache"
	"github.com/placeshare/placeshare/internal/cleanup"
	"github.com/placeshare/placeshare/internal/config"
	"github.com/placeshare/placeshare/internal/geocode"
	"github.com/placeshare/placeshare/internal/handler"
	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/middleware"
	"github.com/placeshare/placeshare/internal/repository"
	"github.com/placeshare/placeshare/internal/repository/memstore"
	"github.com/placeshare/placeshare/internal/server"
	"github.com/placeshare/placeshare/internal/service"
	"github.com/placeshare/placeshare/internal/storage"
)

// appStore is the persistence the API runs on: Postgres or the in-memory store.
type appStore interface {
	service.Store
	handler.HealthChecker
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	recorder := metrics.NewPrometheus()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	// Redis is optional; without it the auth rate limiter runs in-process.
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			closeStore()
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			return fmt.Errorf("connect to redis: %s", sanitizeError(err, cfg.RedisURL))
		}
		logger.Info("connected to Redis")
	}

	images, err := storage.NewImageStore(cfg.UploadDir, cfg.MaxImageSize)
	if err != nil {
		closeStore()
		return fmt.Errorf("prepare upload dir: %w", err)
	}

	janitor := cleanup.NewJanitor(images, logger, recorder, cleanup.DefaultQueueSize)
	go func() {
		if err := janitor.Run(context.WithoutCancel(ctx)); err != nil {
			logger.Error("janitor stopped", "error", err)
		}
	}()

	// Initialize services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	hasher := auth.NewArgon2Hasher(auth.DefaultArgon2Params)
	geocoder := newGeocoder(cfg, recorder, logger)

	placeService := service.NewPlaceService(store, geocoder, janitor, recorder, logger)
	userService := service.NewUserService(store, hasher, tokens, recorder, logger)

	// Initialize handlers
	var healthCache handler.HealthChecker
	var limiter middleware.AuthRateLimiter
	if cacheClient != nil {
		healthCache = cacheClient
		limiter = cacheClient
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := handler.NewRouter(handler.RouterConfig{
		Logger:   logger,
		Places:   handler.NewPlaceHandler(placeService, images, janitor, logger),
		Users:    handler.NewUserHandler(userService, images, janitor, logger),
		Health:   handler.NewHealthHandler(store, healthCache),
		Metrics:  handler.NewMetricsHandler(recorder),
		Verifier: tokens,
		Recorder: recorder,
		RateLimit: middleware.RateLimitConfig{
			Logger:        logger,
			Limiter:       limiter,
			Enabled:       cfg.RateLimitAuthEnabled,
			RatePerMinute: cfg.RateLimitAuthRPM,
			Burst:         cfg.RateLimitAuthBurst,
		},
		CORS:        corsCfg,
		Security:    middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		MaxBodySize: cfg.MaxRequestBodySize,
		UploadDir:   images.Dir(),
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last.
	srv.OnShutdown("store", func(context.Context) error {
		closeStore()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error {
			return cacheClient.Close()
		})
	}
	srv.OnShutdown("cleanup janitor", janitor.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"store", cfg.StoreDriver,
		"redis", cacheClient != nil,
		"geocoder", geocoderName(cfg),
	)

	return srv.Run(ctx)
}

// openStore connects the configured store and returns its close function.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (appStore, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store; data is lost on restart")
		return memstore.New(), func() {}, nil
	}

	if cfg.MigrateOnStart {
		if err := repository.Migrate(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			logger.Error(
				"failed to apply migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
				slog.String("database_url", redactURL(cfg.DatabaseURL)),
			)
			return nil, nil, fmt.Errorf("migrate: %s", sanitizeError(err, cfg.DatabaseURL))
		}
		logger.Info("migrations applied", "path", cfg.MigrationsPath)
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return nil, nil, fmt.Errorf("connect to database: %s", sanitizeError(err, cfg.DatabaseURL))
	}
	logger.Info("connected to database")

	return repo, repo.Close, nil
}

// newGeocoder uses Google behind a circuit breaker when an API key is set,
// and fixed coordinates otherwise.
func newGeocoder(cfg *config.Config, recorder metrics.Recorder, logger *slog.Logger) geocode.Geocoder {
	if cfg.GeocodeAPIKey == "" {
		logger.Warn("GEOCODE_API_KEY not set; every address resolves to a fixed location")
		return geocode.NewStatic(geocode.DefaultLocation)
	}
	google := geocode.NewGoogleClient(cfg.GeocodeAPIKey, cfg.GeocodeBaseURL, cfg.GeocodeTimeout)
	return geocode.NewBreaker(google, geocode.DefaultBreakerSettings, recorder, logger)
}

func geocoderName(cfg *config.Config) string {
	if cfg.GeocodeAPIKey == "" {
		return "static"
	}
	return "google"
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
