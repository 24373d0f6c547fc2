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

	billsGenerated   *prometheus.CounterVec
	billsSkipped     *prometheus.CounterVec
	paymentsRecorded *prometheus.CounterVec
}

// NewMetrics initialises the registry, the HTTP metrics and the billing
// domain counters.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aravali_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aravali_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	generated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aravali_bills_generated_total",
		Help: "Bills created by generation runs, per society.",
	}, []string{"society"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aravali_bills_skipped_total",
		Help: "Units skipped by generation runs (already billed), per society.",
	}, []string{"society"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aravali_payments_recorded_total",
		Help: "Payment transactions recorded, per society.",
	}, []string{"society"})
	registry.MustRegister(requests, duration, generated, skipped, payments)
	return &Metrics{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:    requests,
		requestDuration:  duration,
		billsGenerated:   generated,
		billsSkipped:     skipped,
		paymentsRecorded: payments,
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

// Middleware records HTTP metrics for every request.
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

// BillsGenerated records the outcome of a generation run.
func (m *Metrics) BillsGenerated(societyID int64, generated, skipped int) {
	if m == nil {
		return
	}
	society := strconv.FormatInt(societyID, 10)
	m.billsGenerated.WithLabelValues(society).Add(float64(generated))
	m.billsSkipped.WithLabelValues(society).Add(float64(skipped))
}

// PaymentRecorded counts one recorded payment transaction.
func (m *Metrics) PaymentRecorded(societyID int64) {
	if m == nil {
		return
	}
	m.paymentsRecorded.WithLabelValues(strconv.FormatInt(societyID, 10)).Inc()
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
