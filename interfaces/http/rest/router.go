package rest

import (
	"net/http"

	"inventory/interfaces/http/rest/handlers"
	"inventory/interfaces/http/rest/middleware"
	pkgerrors "inventory/pkg/errors"
	"inventory/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions toggles the optional parts of the HTTP surface
type RouterOptions struct {
	EnableCORS    bool
	EnableMetrics bool
	Debug         bool
}

// Router creates and configures the HTTP router
type Router struct {
	views    handlers.ViewService
	migrator handlers.Migrator
	metrics  *observability.Collector
	options  RouterOptions
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	views handlers.ViewService,
	migrator handlers.Migrator,
	metrics *observability.Collector,
	options RouterOptions,
	logger *zap.Logger,
) *Router {
	return &Router{
		views:    views,
		migrator: migrator,
		metrics:  metrics,
		options:  options,
		errors:   pkgerrors.NewErrorHandler(logger, options.Debug),
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.options.EnableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.options.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "PUT", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-View-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.EnableMetrics {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/objects/{className}/{objectID}/views/{viewClass}", func(r chi.Router) {
			viewHandler := handlers.NewViewHandler(rt.views, rt.errors, rt.logger)
			r.Get("/", viewHandler.OpenView)
			r.Put("/", viewHandler.SaveView)
			r.Get("/document", viewHandler.GetDocument)
		})

		r.Route("/admin/migrations/view-ids", func(r chi.Router) {
			migrationHandler := handlers.NewMigrationHandler(rt.migrator, rt.errors, rt.logger)
			r.Get("/", migrationHandler.Status)
			r.Post("/", migrationHandler.Run)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports not ready while a migration rewrites views
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.migrator.Running() {
		rt.errors.HandleStatus(w, req, http.StatusServiceUnavailable, "view migration in progress")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
