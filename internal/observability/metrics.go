package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	OrdersMaterialized    prometheus.Counter
	MaterializeFailures   prometheus.Counter
	DistributionsComputed prometheus.Counter
	BatchUsagesRecorded   prometheus.Counter
	BatchUsagesDeduped    prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "packhouse_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "packhouse_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	materialized := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "packhouse_standing_orders_materialized_total",
		Help: "Orders generated from standing-order occurrences.",
	})
	materializeFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "packhouse_standing_orders_failures_total",
		Help: "Standing-order occurrences that failed to materialize.",
	})
	distributions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "packhouse_box_distributions_total",
		Help: "Box distribution plans computed.",
	})
	usages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "packhouse_batch_usages_recorded_total",
		Help: "Batch usage entries recorded in the ledger.",
	})
	deduped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "packhouse_batch_usages_deduplicated_total",
		Help: "Batch usage submissions skipped as already recorded.",
	})
	registry.MustRegister(requests, duration, materialized, materializeFailures, distributions, usages, deduped)
	return &Metrics{
		registry:              registry,
		handler:               promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:         requests,
		requestDuration:       duration,
		OrdersMaterialized:    materialized,
		MaterializeFailures:   materializeFailures,
		DistributionsComputed: distributions,
		BatchUsagesRecorded:   usages,
		BatchUsagesDeduped:    deduped,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
