package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corral-proxy/corral/internal/core/ports"
)

const Namespace = "corral"

// LLM calls take anywhere from a few hundred milliseconds to minutes
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 240}

// Collector implements ports.DispatchMetrics on a private registry so tests
// and multiple instances never collide on the global one
type Collector struct {
	registry *prometheus.Registry

	attempts        *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	failovers       *prometheus.CounterVec
	unroutable      *prometheus.CounterVec
	healthy         *prometheus.GaugeVec
	failures        *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewCollector registers everything on a fresh registry. When source is set
// per backend load gauges are read from it at scrape time.
func NewCollector(source ports.BackendSnapshotSource) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "attempts_total",
			Help:      "Backend calls by attempt (primary or failover) and outcome class",
		}, []string{"backend", "attempt", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "attempt_duration_seconds",
			Help:      "Time from dequeue until backend response headers",
			Buckets:   latencyBuckets,
		}, []string{"backend", "attempt"}),
		failovers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "failovers_total",
			Help:      "Requests re-routed after an overload or server error",
		}, []string{"from", "to"}),
		unroutable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unroutable_total",
			Help:      "Requests answered by the proxy itself because nothing could serve them",
		}, []string{"reason"}),
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "healthy",
			Help:      "1 when the backend is below its failure threshold",
		}, []string{"backend"}),
		failures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "backend",
			Name:      "consecutive_failures",
			Help:      "Failures since the backend last succeeded",
		}, []string{"backend"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Inbound requests by route and status code",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Inbound request duration including streamed bodies",
			Buckets:   latencyBuckets,
		}, []string{"route"}),
	}

	c.registry.MustRegister(
		c.attempts,
		c.attemptDuration,
		c.failovers,
		c.unroutable,
		c.healthy,
		c.failures,
		c.httpRequests,
		c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if source != nil {
		c.registry.MustRegister(newBackendLoadCollector(source))
	}

	return c
}

func (c *Collector) RecordAttempt(backend, attempt, outcome string, _ int, latency time.Duration) {
	c.attempts.WithLabelValues(backend, attempt, outcome).Inc()
	c.attemptDuration.WithLabelValues(backend, attempt).Observe(latency.Seconds())
}

func (c *Collector) RecordFailover(from, to string) {
	c.failovers.WithLabelValues(from, to).Inc()
}

func (c *Collector) RecordUnroutable(reason string) {
	c.unroutable.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordBackendHealth(backend string, healthy bool, failures int) {
	value := 0.0
	if healthy {
		value = 1
	}
	c.healthy.WithLabelValues(backend).Set(value)
	c.failures.WithLabelValues(backend).Set(float64(failures))
}

// RecordHTTPRequest is called by the front door once a response is finished
func (c *Collector) RecordHTTPRequest(route string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// WatchBackends adds the per backend load gauges for a source that did not
// exist yet when the collector was built
func (c *Collector) WatchBackends(source ports.BackendSnapshotSource) error {
	return c.registry.Register(newBackendLoadCollector(source))
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
