package stats

/*
				Corral Stats Collector
	Collector keeps the in-memory request totals the status endpoints show:
	per backend counts, latency percentiles, failovers and security
	violations. Every proxied request reports here once it finishes, so
	everything is lock free on the hot path (xsync counters and maps).

	Backends are fixed at startup so there is nothing to expire, the
	rate limited IP set is the only thing that grows and it is pruned.
*/

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

const (
	// MaxTrackedRateLimitedIPs bounds the violation set, oldest entries go first
	MaxTrackedRateLimitedIPs = 10_000
	RateLimitedIPTTL         = time.Hour
)

type Collector struct {
	logger   logger.StyledLogger
	backends *xsync.Map[string, *backendData]

	// IP -> last violation unix nanos
	rateLimitedIPs *xsync.Map[string, int64]

	totalRequests      *xsync.Counter
	successfulRequests *xsync.Counter
	failedRequests     *xsync.Counter
	failovers          *xsync.Counter
	totalLatency       *xsync.Counter

	rateLimitViolations *xsync.Counter
	sizeLimitViolations *xsync.Counter
}

type backendData struct {
	latencies          *ReservoirSampler
	totalRequests      *xsync.Counter
	successfulRequests *xsync.Counter
	failedRequests     *xsync.Counter
	streamingRequests  *xsync.Counter
	failoversFrom      *xsync.Counter
	totalLatency       *xsync.Counter
	lastUsed           atomic.Int64
	name               string
}

func NewCollector(logger logger.StyledLogger) *Collector {
	return &Collector{
		logger:              logger,
		backends:            xsync.NewMap[string, *backendData](),
		rateLimitedIPs:      xsync.NewMap[string, int64](),
		totalRequests:       xsync.NewCounter(),
		successfulRequests:  xsync.NewCounter(),
		failedRequests:      xsync.NewCounter(),
		failovers:           xsync.NewCounter(),
		totalLatency:        xsync.NewCounter(),
		rateLimitViolations: xsync.NewCounter(),
		sizeLimitViolations: xsync.NewCounter(),
	}
}

// RecordRequest counts one finished request. Client errors count as
// successful requests here, mirroring how health treats them.
func (c *Collector) RecordRequest(backend, outcome string, latency time.Duration, streaming bool) {
	latencyMs := latency.Milliseconds()
	success := outcome == constants.OutcomeSuccess || outcome == constants.OutcomeClientError

	c.totalRequests.Inc()
	if success {
		c.successfulRequests.Inc()
		c.totalLatency.Add(latencyMs)
	} else {
		c.failedRequests.Inc()
	}

	if backend == "" {
		return
	}

	data := c.backend(backend)
	data.totalRequests.Inc()
	if success {
		data.successfulRequests.Inc()
		data.totalLatency.Add(latencyMs)
		data.latencies.Add(latencyMs)
	} else {
		data.failedRequests.Inc()
	}
	if streaming {
		data.streamingRequests.Inc()
	}
	data.lastUsed.Store(time.Now().UnixNano())
}

func (c *Collector) RecordFailover(backend string) {
	c.failovers.Inc()
	if backend != "" {
		c.backend(backend).failoversFrom.Inc()
	}
}

func (c *Collector) RecordSecurityViolation(violation ports.SecurityViolation) {
	switch violation.ViolationType {
	case ports.ViolationRateLimit:
		c.rateLimitViolations.Inc()
		if violation.ClientID != "" {
			c.rateLimitedIPs.Store(violation.ClientID, violation.Timestamp.UnixNano())
			c.pruneRateLimitedIPs()
		}
	case ports.ViolationSizeLimit:
		c.sizeLimitViolations.Inc()
	}

	c.logger.Debug("Security violation recorded",
		"type", violation.ViolationType,
		"client_id", violation.ClientID,
		"endpoint", violation.Endpoint)
}

func (c *Collector) GetProxyStats() ports.ProxyStats {
	successful := c.successfulRequests.Value()

	var avgLatency int64
	if successful > 0 {
		avgLatency = c.totalLatency.Value() / successful
	}

	return ports.ProxyStats{
		TotalRequests:      c.totalRequests.Value(),
		SuccessfulRequests: successful,
		FailedRequests:     c.failedRequests.Value(),
		Failovers:          c.failovers.Value(),
		AverageLatency:     avgLatency,
	}
}

func (c *Collector) GetBackendStats() map[string]ports.BackendStats {
	stats := make(map[string]ports.BackendStats, c.backends.Size())

	c.backends.Range(func(name string, data *backendData) bool {
		total := data.totalRequests.Value()
		successful := data.successfulRequests.Value()

		var avgLatency int64
		if successful > 0 {
			avgLatency = data.totalLatency.Value() / successful
		}
		successRate := 0.0
		if total > 0 {
			successRate = float64(successful) / float64(total) * 100
		}

		var lastUsed time.Time
		if nanos := data.lastUsed.Load(); nanos > 0 {
			lastUsed = time.Unix(0, nanos)
		}

		p50, p95, p99 := data.latencies.GetPercentiles()

		stats[name] = ports.BackendStats{
			Name:               data.name,
			TotalRequests:      total,
			SuccessfulRequests: successful,
			FailedRequests:     data.failedRequests.Value(),
			StreamingRequests:  data.streamingRequests.Value(),
			FailoversFrom:      data.failoversFrom.Value(),
			AverageLatency:     avgLatency,
			P50Latency:         p50,
			P95Latency:         p95,
			P99Latency:         p99,
			SuccessRate:        successRate,
			LastUsed:           lastUsed,
		}
		return true
	})

	return stats
}

func (c *Collector) GetSecurityStats() ports.SecurityStats {
	return ports.SecurityStats{
		RateLimitViolations:  c.rateLimitViolations.Value(),
		SizeLimitViolations:  c.sizeLimitViolations.Value(),
		UniqueRateLimitedIPs: c.rateLimitedIPs.Size(),
	}
}

func (c *Collector) backend(name string) *backendData {
	data, _ := c.backends.LoadOrCompute(name, func() (*backendData, bool) {
		return &backendData{
			name:               name,
			latencies:          NewReservoirSampler(DefaultSampleSize),
			totalRequests:      xsync.NewCounter(),
			successfulRequests: xsync.NewCounter(),
			failedRequests:     xsync.NewCounter(),
			streamingRequests:  xsync.NewCounter(),
			failoversFrom:      xsync.NewCounter(),
			totalLatency:       xsync.NewCounter(),
		}, false
	})
	return data
}

func (c *Collector) pruneRateLimitedIPs() {
	if c.rateLimitedIPs.Size() <= MaxTrackedRateLimitedIPs {
		return
	}

	cutoff := time.Now().Add(-RateLimitedIPTTL).UnixNano()
	c.rateLimitedIPs.Range(func(ip string, lastSeen int64) bool {
		if lastSeen < cutoff {
			c.rateLimitedIPs.Delete(ip)
		}
		return true
	})
}
