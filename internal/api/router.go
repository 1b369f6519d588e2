package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yelbahhaoui/MediaConnectPruebas/internal/api/middleware"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/config"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/handlers"
	"github.com/yelbahhaoui/MediaConnectPruebas/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil,
// in which case rate limiting is disabled.
func NewRouter(logger zerolog.Logger, cfg *config.Config, dir store.Directory, liveStore store.LiveStore, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024)) // 8KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	var limiter *middleware.RateLimiter
	if redisStore != nil {
		limiter = middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(dir, liveStore, handlers.Options{
		Logger:         logger,
		Limiter:        limiter,
		SearchDebounce: cfg.SearchDebounce,
		SearchLimit:    cfg.SearchLimit,
		TrendLimit:     cfg.TrendLimit,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	auth := middleware.NewAuthMiddleware(cfg.TokenSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)

	// Authenticated routes (require identity token)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Post("/register", h.Register)
		r.Get("/users/{id}", h.GetUser)
		r.Get("/users", h.SearchUsers)
		r.Get("/ws", h.Live)
	})

	return r
}
