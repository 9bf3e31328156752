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
	tdsTotal        *prometheus.CounterVec
	marginTotal     *prometheus.CounterVec
	invoiceTotal    *prometheus.CounterVec
}

// NewMetrics initialises the registry with HTTP and calculator metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trainops_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trainops_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	tds := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trainops_tds_computations_total",
		Help: "TDS computations by section and compliance status.",
	}, []string{"section", "compliance"})
	margin := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trainops_margin_evaluations_total",
		Help: "Deal margin evaluations by margin band.",
	}, []string{"status"})
	invoice := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trainops_invoice_totals_total",
		Help: "Invoice total computations by GST type.",
	}, []string{"gst_type"})
	registry.MustRegister(requests, duration, tds, margin, invoice)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		tdsTotal:        tds,
		marginTotal:     margin,
		invoiceTotal:    invoice,
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

// Middleware records request metrics.
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

// ObserveTDS counts one TDS computation.
func (m *Metrics) ObserveTDS(section, compliance string) {
	if m == nil {
		return
	}
	m.tdsTotal.WithLabelValues(section, compliance).Inc()
}

// ObserveMargin counts one margin evaluation.
func (m *Metrics) ObserveMargin(status string) {
	if m == nil {
		return
	}
	m.marginTotal.WithLabelValues(status).Inc()
}

// ObserveInvoice counts one invoice total computation.
func (m *Metrics) ObserveInvoice(gstType string) {
	if m == nil {
		return
	}
	m.invoiceTotal.WithLabelValues(gstType).Inc()
}

// Registerer exposes the registry for custom collectors.
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
