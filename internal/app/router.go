package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/phoenix-garage/garage/internal/actions"
	"github.com/phoenix-garage/garage/internal/dashboard"
	"github.com/phoenix-garage/garage/internal/intake"
	"github.com/phoenix-garage/garage/internal/inventory"
	"github.com/phoenix-garage/garage/internal/invoice"
	"github.com/phoenix-garage/garage/internal/jobcard"
	"github.com/phoenix-garage/garage/internal/observability"
	"github.com/phoenix-garage/garage/internal/platform/httpx"
	"github.com/phoenix-garage/garage/jobs"
)

// HealthCheck probes one dependency for /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Metrics          *observability.Metrics
	HealthChecks     []HealthCheck
	InventoryHandler *inventory.Handler
	JobHandler       *jobcard.Handler
	InvoiceHandler   *invoice.Handler
	IntakeHandler    *intake.Handler
	DashboardHandler *dashboard.Handler
	UploadHandler    *actions.UploadHandler
	ActionHandler    *actions.Handler
	QueueHandler     *jobs.Handler
}

// NewRouter constructs the chi.Router with garage defaults. Nil handlers are skipped.
func NewRouter(params RouterParams) http.Handler {
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.Logger, params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.ActionHandler != nil {
		r.Route("/exec", params.ActionHandler.MountRoutes)
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.InventoryHandler != nil {
			r.Route("/parts", params.InventoryHandler.MountRoutes)
		}
		r.Route("/jobs", func(r chi.Router) {
			if params.JobHandler != nil {
				params.JobHandler.MountRoutes(r)
			}
			if params.InvoiceHandler != nil {
				r.Route("/{id}/invoice", params.InvoiceHandler.MountRoutes)
			}
		})
		if params.IntakeHandler != nil {
			r.Route("/intake", params.IntakeHandler.MountRoutes)
		}
		if params.UploadHandler != nil {
			r.Route("/uploads", params.UploadHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.QueueHandler != nil {
			r.Route("/queue", params.QueueHandler.MountRoutes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func healthHandler(logger *slog.Logger, checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		healthy := true
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				logger.Warn("health check failed", slog.String("dependency", hc.Name), slog.Any("error", err))
				status[hc.Name] = "down"
				healthy = false
				continue
			}
			status[hc.Name] = "ok"
		}
		if !healthy {
			httpx.JSON(w, http.StatusServiceUnavailable, httpx.Envelope{Status: "error", Data: status, Message: "dependency unavailable"})
			return
		}
		httpx.Success(w, http.StatusOK, status)
	}
}
