package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/packhouse-erp/packhouse-erp/internal/batches"
	"github.com/packhouse-erp/packhouse-erp/internal/calendar"
	"github.com/packhouse-erp/packhouse-erp/internal/catalog/products"
	"github.com/packhouse-erp/packhouse-erp/internal/customers"
	"github.com/packhouse-erp/packhouse-erp/internal/notify"
	"github.com/packhouse-erp/packhouse-erp/internal/observability"
	"github.com/packhouse-erp/packhouse-erp/internal/orders"
	"github.com/packhouse-erp/packhouse-erp/internal/standing"
	"github.com/packhouse-erp/packhouse-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	ProductsHandler     *products.Handler
	CustomersHandler    *customers.Handler
	CalendarHandler     *calendar.Handler
	OrdersHandler       *orders.Handler
	StandingHandler     *standing.Handler
	BatchesHandler      *batches.Handler
	NotificationHandler *notify.Handler
	JobHandler          *jobs.Handler
	Metrics             *observability.Metrics
}

// NewRouter constructs the chi.Router with packhouse defaults.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", params.ProductsHandler.MountRoutes)
		r.Route("/customers", params.CustomersHandler.MountRoutes)
		r.Route("/calendar", params.CalendarHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/standing-orders", params.StandingHandler.MountRoutes)
		r.Route("/batches", params.BatchesHandler.MountRoutes)
		if params.NotificationHandler != nil {
			r.Route("/notifications", params.NotificationHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
