package router

import (
	"net/http"
	"time"

	"github.com/actuallystonmai/cratebuddy/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Options struct {
	AllowedOrigins  []string
	RequestTimeout  time.Duration
	RateLimitReqs   int // 0 disables rate limiting
	RateLimitWindow time.Duration
}

func Setup(h *handler.Handler, opts Options) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Instrument)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		if opts.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(opts.RateLimitReqs, opts.RateLimitWindow))
		}
		r.Post("/recommend", h.Recommend)
	})
	r.Get("/weights", h.Weights)
	r.Get("/healthz", h.Healthz)
	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
