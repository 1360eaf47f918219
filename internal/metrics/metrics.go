// Package metrics exposes Prometheus collectors for the garage server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	payments       *prometheus.CounterVec
	jobSheets      *prometheus.CounterVec
	recomputes     *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "garage_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		payments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_payments_total",
				Help: "Payment admissions by result",
			},
			[]string{"result"},
		),
		jobSheets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_jobsheets_total",
				Help: "Job sheet renders by result",
			},
			[]string{"result"},
		),
		recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "garage_payment_status_recomputes_total",
				Help: "Payment status recomputations, labelled by whether the stored value changed",
			},
			[]string{"changed"},
		),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestLatency,
		m.payments,
		m.jobSheets,
		m.recomputes,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

func (m *Metrics) PaymentAdmitted() {
	if m != nil {
		m.payments.WithLabelValues("accepted").Inc()
	}
}

func (m *Metrics) PaymentRejected() {
	if m != nil {
		m.payments.WithLabelValues("rejected").Inc()
	}
}

func (m *Metrics) JobSheetRendered(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobSheets.WithLabelValues(result).Inc()
}

func (m *Metrics) StatusRecomputed(changed bool) {
	if m != nil {
		m.recomputes.WithLabelValues(strconv.FormatBool(changed)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency. It must wrap the ServeMux
// directly so the matched route pattern is visible after dispatch.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.requestLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		m.requestCounter.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
	})
}
