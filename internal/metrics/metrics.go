// Package metrics exposes Prometheus metrics for label generation and HTTP
// traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/labelqr/internal/core"
)

const namespace = "labelqr"

// Record outcome labels.
const (
	outcomeOK         = "ok"
	outcomeValidation = "validation"
	outcomeRender     = "render"
	outcomeOther      = "other"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	batchesTotal      *prometheus.CounterVec
	batchErrorsTotal  *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	batchSize         prometheus.Histogram
	recordsTotal      *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	httpInFlight      prometheus.Gauge
}

var _ core.BatchObserver = (*Metrics)(nil)

// New creates Metrics on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		batchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Generate actions that produced a sheet, by input source.",
			},
			[]string{"source"},
		),

		batchErrorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_errors_total",
				Help:      "Generate actions rejected before rendering, by source and error code.",
			},
			[]string{"source", "code"},
		),

		batchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time from input to rendered sheet.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),

		batchSize: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_records",
				Help:      "Records per rendered sheet.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		recordsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records that reached the renderer, by outcome.",
			},
			[]string{"outcome"},
		),

		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "status_code"},
		),

		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		httpInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "HTTP requests currently being served.",
			},
		),
	}
}

// ObserveRecord counts one render outcome.
func (m *Metrics) ObserveRecord(err error) {
	m.recordsTotal.WithLabelValues(recordOutcome(err)).Inc()
}

// ObserveBatch records a completed sheet.
func (m *Metrics) ObserveBatch(source core.Source, sheet *core.Sheet, elapsed time.Duration) {
	src := string(source)
	m.batchesTotal.WithLabelValues(src).Inc()
	m.batchDuration.WithLabelValues(src).Observe(elapsed.Seconds())
	m.batchSize.Observe(float64(sheet.Processed()))
}

// ObserveBatchError counts a rejected action under its support code.
func (m *Metrics) ObserveBatchError(source core.Source, err error) {
	m.batchErrorsTotal.WithLabelValues(string(source), core.MapError(err).Code).Inc()
}

func recordOutcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	if !core.IsRecordError(err) {
		return outcomeOther
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return outcomeValidation
	}
	return outcomeRender
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request count, duration and in-flight requests. Routes
// are labelled with the chi pattern so path parameters do not explode label
// cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
