// Package metrics exposes dispatch outcomes as Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace          = "portal"
	dispatchSubsystem  = "dispatch"
	rejectionSubsystem = "rejection"
)

// Options configures the collector.
type Options struct {
	// HistogramBuckets overrides the default request duration buckets.
	HistogramBuckets []float64

	// EnableRuntimeMetrics adds the Go and process collectors.
	EnableRuntimeMetrics bool
}

// Prometheus counts dispatched requests on its own registry.
type Prometheus struct {
	requestsM   *prometheus.CounterVec
	durationM   *prometheus.HistogramVec
	rejectionsM *prometheus.CounterVec
	inFlightM   prometheus.Gauge

	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus creates a collector with a fresh registry.
func NewPrometheus(opts Options) *Prometheus {
	buckets := opts.HistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	p := &Prometheus{
		requestsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: dispatchSubsystem,
			Name:      "requests_total",
			Help:      "Total dispatched requests by method, outcome and status code.",
		}, []string{"method", "outcome", "code"}),
		durationM: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: dispatchSubsystem,
			Name:      "duration_seconds",
			Help:      "Duration in seconds of a dispatch, including writing the reply.",
			Buckets:   buckets,
		}, []string{"method", "outcome"}),
		rejectionsM: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: rejectionSubsystem,
			Name:      "total",
			Help:      "Total rejected requests by rejection kind.",
		}, []string{"kind"}),
		inFlightM: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: dispatchSubsystem,
			Name:      "in_flight",
			Help:      "Requests currently being dispatched.",
		}),
		registry: prometheus.NewRegistry(),
	}

	p.registry.MustRegister(p.requestsM, p.durationM, p.rejectionsM, p.inFlightM)
	if opts.EnableRuntimeMetrics {
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		p.registry.MustRegister(collectors.NewGoCollector())
	}
	p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return p
}

// Started marks a request as in flight. Call Finished when it is done.
func (p *Prometheus) Started() { p.inFlightM.Inc() }

// Finished records one completed dispatch. kind is empty for matched
// requests.
func (p *Prometheus) Finished(method, outcome, kind string, code int, d time.Duration) {
	p.inFlightM.Dec()
	p.requestsM.WithLabelValues(method, outcome, strconv.Itoa(code)).Inc()
	p.durationM.WithLabelValues(method, outcome).Observe(d.Seconds())
	if kind != "" {
		p.rejectionsM.WithLabelValues(kind).Inc()
	}
}

// Registry returns the registry the metrics are registered on.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler { return p.handler }
