package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/LoreKit/internal/interfaces/http/handlers"
	"github.com/turtacn/LoreKit/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.  Nil handlers leave their routes unmounted.
type RouterConfig struct {
	// Handlers
	AnnotationHandler *handlers.AnnotationHandler
	HealthHandler     *handlers.HealthHandler
	DirectoryHandler  *handlers.DirectoryHandler

	// Middleware
	Logging middleware.LoggingConfig

	// Infrastructure
	Logger           logging.Logger
	HTTPMetrics      middleware.HTTPRecorder
	MetricsCollector prometheus.MetricsCollector
	MetricsPath      string // defaults to /metrics
}

// NewRouter constructs the complete HTTP route tree from the given configuration.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// --- Global middleware (applied to every request) ---
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(cfg.Logger, cfg.HTTPMetrics, cfg.Logging))
	r.Use(middleware.Recoverer(cfg.Logger))

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AnnotationHandler != nil {
			cfg.AnnotationHandler.RegisterRoutes(api)
		}
		if cfg.DirectoryHandler != nil {
			cfg.DirectoryHandler.RegisterRoutes(api)
		}
	})

	return r
}
