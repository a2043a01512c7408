package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/saborverde/opsboard/internal/config"
	"github.com/saborverde/opsboard/internal/observability"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	Dashboard    *Dashboard
	Metrics      *observability.Metrics
	Readiness    observability.ReadinessChecks
	Authenticate func(http.Handler) http.Handler
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes — bypass authentication.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	// Authenticated routes — full middleware chain.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Route("/api/v1/entities", func(r chi.Router) {
			r.Get("/", handleListEntities(deps.Dashboard))
			r.Route("/{entity}", func(r chi.Router) {
				r.Get("/", handleGetTable(deps.Dashboard))
				r.Get("/data", handleGetTableData(deps.Dashboard))
				r.Route("/rows/{rowId}/panel", func(r chi.Router) {
					r.Post("/", handleOpenPanel(deps.Dashboard))
					r.Get("/", handleGetPanel(deps.Dashboard))
					r.Patch("/", handleEditPanel(deps.Dashboard))
					r.Post("/save", handleSavePanel(deps.Dashboard))
					r.Post("/delete", handleDeletePanel(deps.Dashboard))
					r.Delete("/", handleClosePanel(deps.Dashboard))
				})
			})
		})
	})

	return r
}
