package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/aravali-saas/aravali/internal/billing"
	"github.com/aravali-saas/aravali/internal/observability"
	"github.com/aravali-saas/aravali/internal/society"
	"github.com/aravali-saas/aravali/internal/units"
	"github.com/aravali-saas/aravali/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Society        society.Middleware
	BillingHandler *billing.Handler
	UnitsHandler   *units.Handler
	JobsHandler    *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Aravali defaults. Every tenant
// route sits behind the society middleware; only health and metrics are
// reachable without credentials.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(params.Society.Require)
		r.Route("/billing", params.BillingHandler.MountRoutes)
		r.Route("/units", params.UnitsHandler.MountRoutes)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
