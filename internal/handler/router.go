package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/middleware"
	"github.com/placeshare/placeshare/internal/storage"
)

// UploadsPrefix is the URL prefix under which stored images are served.
const UploadsPrefix = "/" + storage.PublicPrefix

// RouterConfig carries everything the HTTP router needs.
type RouterConfig struct {
	Logger   *slog.Logger
	Places   *PlaceHandler
	Users    *UserHandler
	Health   *HealthHandler
	Metrics  *MetricsHandler
	Verifier middleware.TokenVerifier
	Recorder metrics.Recorder

	RateLimit   middleware.RateLimitConfig
	CORS        middleware.CORSConfig
	Security    middleware.SecurityConfig
	MaxBodySize int64
	// UploadDir is served read-only under UploadsPrefix. Empty disables static serving.
	UploadDir string
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))

	// Ops endpoints (no auth required)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	if cfg.UploadDir != "" {
		r.Get(UploadsPrefix+"*", serveUploads(cfg.UploadDir))
	}

	guard := middleware.TokenGuard(middleware.TokenGuardConfig{
		Logger:   cfg.Logger,
		Verifier: cfg.Verifier,
		Metrics:  cfg.Recorder,
	})
	rateLimit := middleware.RateLimitAuth(cfg.RateLimit)

	r.Route("/api", func(r chi.Router) {
		if cfg.MaxBodySize > 0 {
			r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
		}

		r.Route("/users", func(r chi.Router) {
			r.Get("/", cfg.Users.List)
			r.With(rateLimit).Post("/signup", cfg.Users.Signup)
			r.With(rateLimit).Post("/login", cfg.Users.Login)
		})

		r.Route("/places", func(r chi.Router) {
			r.Get("/{pid}", cfg.Places.Get)
			r.Get("/user/{uid}", cfg.Places.ListByUser)

			// Everything below requires a valid bearer token.
			r.Group(func(r chi.Router) {
				r.Use(guard)
				r.Post("/", cfg.Places.Create)
				r.Patch("/{pid}", cfg.Places.Update)
				r.Delete("/{pid}", cfg.Places.Delete)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}

// serveUploads serves files from dir without directory listings.
func serveUploads(dir string) http.HandlerFunc {
	files := http.StripPrefix(UploadsPrefix, http.FileServer(http.Dir(dir)))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}
}
