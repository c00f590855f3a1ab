package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/corral-proxy/corral/internal/core/ports"
)

// backendLoadCollector reads in-flight and queue depth straight from the
// handles at scrape time instead of mirroring every change into gauges
type backendLoadCollector struct {
	source        ports.BackendSnapshotSource
	inFlight      *prometheus.Desc
	queueDepth    *prometheus.Desc
	maxConcurrent *prometheus.Desc
}

func newBackendLoadCollector(source ports.BackendSnapshotSource) *backendLoadCollector {
	labels := []string{"backend", "type"}
	return &backendLoadCollector{
		source: source,
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "backend", "in_flight"),
			"Calls currently executing against the backend", labels, nil),
		queueDepth: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "backend", "queue_depth"),
			"Requests admitted to the backend queue and not yet started", labels, nil),
		maxConcurrent: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "backend", "max_concurrent"),
			"Configured concurrency bound", labels, nil),
	}
}

func (b *backendLoadCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- b.inFlight
	ch <- b.queueDepth
	ch <- b.maxConcurrent
}

func (b *backendLoadCollector) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range b.source.Snapshots() {
		ch <- prometheus.MustNewConstMetric(b.inFlight, prometheus.GaugeValue, float64(snap.InFlight), snap.Name, snap.Type)
		ch <- prometheus.MustNewConstMetric(b.queueDepth, prometheus.GaugeValue, float64(snap.QueueDepth), snap.Name, snap.Type)
		ch <- prometheus.MustNewConstMetric(b.maxConcurrent, prometheus.GaugeValue, float64(snap.MaxConcurrent), snap.Name, snap.Type)
	}
}
