package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/ports"
)

type staticSource []ports.BackendSnapshot

func (s staticSource) Snapshots() []ports.BackendSnapshot { return s }

func TestCollector_DispatchEvents(t *testing.T) {
	c := NewCollector(nil)

	c.RecordAttempt("cloud", constants.AttemptPrimary, constants.OutcomeServerError, 503, 2*time.Second)
	c.RecordAttempt("local", constants.AttemptFailover, constants.OutcomeSuccess, 200, time.Second)
	c.RecordFailover("cloud", "local")
	c.RecordUnroutable("no_backends")
	c.RecordUnroutable("no_backends")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("cloud", constants.AttemptPrimary, constants.OutcomeServerError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.attempts.WithLabelValues("local", constants.AttemptFailover, constants.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failovers.WithLabelValues("cloud", "local")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.unroutable.WithLabelValues("no_backends")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.attemptDuration))
}

func TestCollector_BackendHealth(t *testing.T) {
	c := NewCollector(nil)

	c.RecordBackendHealth("cloud", false, 3)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.healthy.WithLabelValues("cloud")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.failures.WithLabelValues("cloud")))

	c.RecordBackendHealth("cloud", true, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.healthy.WithLabelValues("cloud")))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.failures.WithLabelValues("cloud")))
}

func TestCollector_BackendLoadFromSnapshots(t *testing.T) {
	source := staticSource{
		{Name: "cloud", Type: "remote-cloud", InFlight: 2, QueueDepth: 5, MaxConcurrent: 2},
		{Name: "local", Type: "local-hosted", InFlight: 0, QueueDepth: 0, MaxConcurrent: 1},
	}
	c := NewCollector(source)

	expected := `
# HELP corral_backend_in_flight Calls currently executing against the backend
# TYPE corral_backend_in_flight gauge
corral_backend_in_flight{backend="cloud",type="remote-cloud"} 2
corral_backend_in_flight{backend="local",type="local-hosted"} 0
# HELP corral_backend_queue_depth Requests admitted to the backend queue and not yet started
# TYPE corral_backend_queue_depth gauge
corral_backend_queue_depth{backend="cloud",type="remote-cloud"} 5
corral_backend_queue_depth{backend="local",type="local-hosted"} 0
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"corral_backend_in_flight", "corral_backend_queue_depth"))
}

func TestCollector_WatchBackendsLater(t *testing.T) {
	c := NewCollector(nil)
	require.NoError(t, c.WatchBackends(staticSource{{Name: "cloud", Type: "remote-cloud", MaxConcurrent: 4}}))

	expected := `
# HELP corral_backend_max_concurrent Configured concurrency bound
# TYPE corral_backend_max_concurrent gauge
corral_backend_max_concurrent{backend="cloud",type="remote-cloud"} 4
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"corral_backend_max_concurrent"))

	assert.Error(t, c.WatchBackends(staticSource{}), "a second source would duplicate the descriptors")
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.RecordHTTPRequest("/v1/chat/completions", 200, 150*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `corral_http_requests_total{code="200",route="/v1/chat/completions"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestCollector_ImplementsDispatchMetrics(t *testing.T) {
	var _ ports.DispatchMetrics = NewCollector(nil)
}
