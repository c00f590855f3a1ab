package stats

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	log, _, err := logger.New(&logger.Config{Level: "error"})
	require.NoError(t, err)
	return NewCollector(logger.NewPlainStyledLogger(log))
}

func TestCollector_RecordRequest(t *testing.T) {
	c := newTestCollector(t)

	c.RecordRequest("cloud", constants.OutcomeSuccess, 100*time.Millisecond, false)
	c.RecordRequest("cloud", constants.OutcomeSuccess, 300*time.Millisecond, true)
	c.RecordRequest("cloud", constants.OutcomeServerError, time.Second, false)
	c.RecordRequest("local", constants.OutcomeClientError, 50*time.Millisecond, false)

	proxy := c.GetProxyStats()
	assert.Equal(t, int64(4), proxy.TotalRequests)
	assert.Equal(t, int64(3), proxy.SuccessfulRequests)
	assert.Equal(t, int64(1), proxy.FailedRequests)
	assert.Equal(t, int64(150), proxy.AverageLatency)

	backends := c.GetBackendStats()
	require.Len(t, backends, 2)

	cloud := backends["cloud"]
	assert.Equal(t, "cloud", cloud.Name)
	assert.Equal(t, int64(3), cloud.TotalRequests)
	assert.Equal(t, int64(2), cloud.SuccessfulRequests)
	assert.Equal(t, int64(1), cloud.FailedRequests)
	assert.Equal(t, int64(1), cloud.StreamingRequests)
	assert.Equal(t, int64(200), cloud.AverageLatency)
	assert.InDelta(t, 66.66, cloud.SuccessRate, 0.1)
	assert.False(t, cloud.LastUsed.IsZero())
	assert.Equal(t, int64(300), cloud.P99Latency)

	assert.Equal(t, 100.0, backends["local"].SuccessRate)
}

func TestCollector_RequestWithoutBackend(t *testing.T) {
	c := newTestCollector(t)
	c.RecordRequest("", constants.OutcomeTimeout, time.Second, false)

	assert.Equal(t, int64(1), c.GetProxyStats().FailedRequests)
	assert.Empty(t, c.GetBackendStats())
}

func TestCollector_Failovers(t *testing.T) {
	c := newTestCollector(t)
	c.RecordFailover("cloud")
	c.RecordFailover("cloud")

	assert.Equal(t, int64(2), c.GetProxyStats().Failovers)
	assert.Equal(t, int64(2), c.GetBackendStats()["cloud"].FailoversFrom)
}

func TestCollector_SecurityViolations(t *testing.T) {
	c := newTestCollector(t)
	now := time.Now()

	c.RecordSecurityViolation(ports.SecurityViolation{ClientID: "10.0.0.1", ViolationType: ports.ViolationRateLimit, Timestamp: now})
	c.RecordSecurityViolation(ports.SecurityViolation{ClientID: "10.0.0.1", ViolationType: ports.ViolationRateLimit, Timestamp: now})
	c.RecordSecurityViolation(ports.SecurityViolation{ClientID: "10.0.0.2", ViolationType: ports.ViolationRateLimit, Timestamp: now})
	c.RecordSecurityViolation(ports.SecurityViolation{ClientID: "10.0.0.3", ViolationType: ports.ViolationSizeLimit, Size: 1 << 30, Timestamp: now})

	stats := c.GetSecurityStats()
	assert.Equal(t, int64(3), stats.RateLimitViolations)
	assert.Equal(t, int64(1), stats.SizeLimitViolations)
	assert.Equal(t, 2, stats.UniqueRateLimitedIPs)
}

func TestCollector_PrunesStaleRateLimitedIPs(t *testing.T) {
	c := newTestCollector(t)
	stale := time.Now().Add(-2 * RateLimitedIPTTL)

	for i := 0; i <= MaxTrackedRateLimitedIPs; i++ {
		c.rateLimitedIPs.Store(fmt.Sprintf("stale-%d", i), stale.UnixNano())
	}
	c.RecordSecurityViolation(ports.SecurityViolation{ClientID: "fresh", ViolationType: ports.ViolationRateLimit, Timestamp: time.Now()})

	assert.Equal(t, 1, c.GetSecurityStats().UniqueRateLimitedIPs)
}

func TestCollector_Concurrent(t *testing.T) {
	c := newTestCollector(t)

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.RecordRequest(fmt.Sprintf("backend-%d", g%3), constants.OutcomeSuccess, time.Millisecond, i%2 == 0)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, int64(1000), c.GetProxyStats().TotalRequests)
	var total int64
	for _, s := range c.GetBackendStats() {
		total += s.TotalRequests
	}
	assert.Equal(t, int64(1000), total)
}
