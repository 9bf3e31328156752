package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/trainops/trainops-erp/internal/deals"
	"github.com/trainops/trainops-erp/internal/invoicing"
	"github.com/trainops/trainops-erp/internal/observability"
	"github.com/trainops/trainops-erp/internal/payables"
	"github.com/trainops/trainops-erp/internal/platform/httpx"
	taxcalchttp "github.com/trainops/trainops-erp/internal/taxcalc/http"
	"github.com/trainops/trainops-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router. Nil handlers are
// left unmounted.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	TaxHandler       *taxcalchttp.Handler
	PayablesHandler  *payables.Handler
	DealsHandler     *deals.Handler
	InvoicingHandler *invoicing.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with TrainOps defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.TaxHandler != nil {
			params.TaxHandler.MountRoutes(r)
		}
		if params.PayablesHandler != nil {
			params.PayablesHandler.MountRoutes(r)
		}
		if params.DealsHandler != nil {
			params.DealsHandler.MountRoutes(r)
		}
		if params.InvoicingHandler != nil {
			params.InvoicingHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", r.URL.Path)
	})
	return r
}
