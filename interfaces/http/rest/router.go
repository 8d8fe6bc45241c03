package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/interfaces/http/rest/handlers"
	"synergy-backend/interfaces/http/rest/middleware"
	"synergy-backend/pkg/observability"
)

// Options toggles optional router features
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	Tracer         trace.Tracer // nil disables request spans
}

// Router creates and configures the HTTP router
type Router struct {
	graph   handlers.GraphService
	health  ports.HealthReporter
	metrics *observability.Collector
	options Options
	logger  *zap.Logger
}

// NewRouter creates a new router instance. A nil collector disables /metrics.
func NewRouter(
	graph handlers.GraphService,
	health ports.HealthReporter,
	metrics *observability.Collector,
	options Options,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		graph:   graph,
		health:  health,
		metrics: metrics,
		options: options,
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	if rt.options.Tracer != nil {
		router.Use(middleware.Tracing(rt.options.Tracer))
	}
	router.Use(middleware.Logger(rt.logger, rt.metrics))

	if rt.options.EnableCORS {
		origins := rt.options.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	healthHandler := handlers.NewHealthHandler(rt.health)
	router.Get("/health", healthHandler.Health)
	router.Get("/ready", healthHandler.Ready)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	synergyHandler := handlers.NewSynergyHandler(rt.graph, rt.logger)
	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/edges", synergyHandler.ProposeEdge)

		r.Route("/domains", func(r chi.Router) {
			r.Get("/", synergyHandler.ListDomains)
			r.Delete("/{domainID}", synergyHandler.RemoveDomain)
			r.Get("/{domainID}/neighbors", synergyHandler.GetNeighbors)
			r.Delete("/{domainID}/edges/{targetID}", synergyHandler.RemoveEdge)
		})

		r.Get("/stats", synergyHandler.GetStats)
		r.Post("/persist", synergyHandler.Persist)
		r.Post("/hydrate", synergyHandler.Hydrate)
	})

	return router
}
