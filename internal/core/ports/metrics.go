package ports

import "time"

// DispatchMetrics receives events from the dispatch path. Implementations must
// be safe for concurrent use, the worker goroutines report here directly.
type DispatchMetrics interface {
	RecordAttempt(backend, attempt, outcome string, statusCode int, latency time.Duration)
	RecordFailover(from, to string)
	RecordUnroutable(reason string)
	RecordBackendHealth(backend string, healthy bool, failures int)
}

// BackendSnapshot is a point-in-time view of one backend handle
type BackendSnapshot struct {
	LastUsedAt    time.Time
	Name          string
	URL           string
	Type          string
	Protocol      string
	LastError     string
	Weight        int
	MaxConcurrent int
	InFlight      int64
	QueueDepth    int
	QueueCapacity int
	Failures      int
	Healthy       bool
}

// BackendSnapshotSource exposes snapshots for status pages and gauges
type BackendSnapshotSource interface {
	Snapshots() []BackendSnapshot
}

type noopDispatchMetrics struct{}

// NoopDispatchMetrics discards everything
func NoopDispatchMetrics() DispatchMetrics {
	return noopDispatchMetrics{}
}

func (noopDispatchMetrics) RecordAttempt(string, string, string, int, time.Duration) {}
func (noopDispatchMetrics) RecordFailover(string, string)                            {}
func (noopDispatchMetrics) RecordUnroutable(string)                                  {}
func (noopDispatchMetrics) RecordBackendHealth(string, bool, int)                    {}
