package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

func createTestLogger() logger.StyledLogger {
	log, _, _ := logger.New(&logger.Config{Level: "error"})
	return logger.NewPlainStyledLogger(log)
}

func testConfig(name string, maxConcurrent int) domain.EndpointConfig {
	u, _ := url.Parse("http://" + name + ".test")
	return domain.EndpointConfig{
		Name:          name,
		URL:           u,
		Type:          domain.BackendRemoteCloud,
		MaxConcurrent: maxConcurrent,
	}
}

func textResponse(status int, body string) *domain.Response {
	return &domain.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	health   []bool
}

func (m *recordingMetrics) RecordAttempt(_, _, outcome string, _ int, _ time.Duration) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
}
func (m *recordingMetrics) RecordFailover(string, string) {}
func (m *recordingMetrics) RecordUnroutable(string)       {}
func (m *recordingMetrics) RecordBackendHealth(_ string, healthy bool, _ int) {
	m.mu.Lock()
	m.health = append(m.health, healthy)
	m.mu.Unlock()
}

func (m *recordingMetrics) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.outcomes...)
}

func startHandle(t *testing.T, h *Handle) {
	t.Helper()
	pool := &Pool{handles: []*Handle{h}, byName: map[string]*Handle{h.Name(): h}, logger: createTestLogger()}
	pool.Start(context.Background())
	t.Cleanup(func() { _ = pool.Stop() })
}

func awaitResponse(t *testing.T, c *domain.Completion) *domain.Response {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := c.Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func newRequest() *domain.Request {
	return domain.NewRequest("req", constants.PathV1ChatCompletions, []byte(`{"messages":[]}`), nil)
}

func TestHandle_ConcurrencyNeverExceedsMax(t *testing.T) {
	var active, peak atomic.Int64
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return &domain.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       &trackedBody{Reader: strings.NewReader("ok"), onClose: func() { active.Add(-1) }},
		}
	})

	h := NewHandle(testConfig("a", 2), client, HandleOptions{}, createTestLogger())
	startHandle(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
			require.NoError(t, err)
			resp := awaitResponse(t, c)
			assert.LessOrEqual(t, h.InFlight(), int64(2))
			time.Sleep(5 * time.Millisecond)
			_, _ = io.ReadAll(resp.Body)
			_ = resp.Close()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Eventually(t, func() bool { return h.InFlight() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHandle_SlotHeldUntilBodyClosed(t *testing.T) {
	var calls atomic.Int32
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		calls.Add(1)
		return textResponse(http.StatusOK, "data")
	})

	h := NewHandle(testConfig("a", 1), client, HandleOptions{}, createTestLogger())
	startHandle(t, h)

	first, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	resp := awaitResponse(t, first)
	assert.Equal(t, "a", resp.Backend)
	assert.Equal(t, int64(1), h.InFlight())

	second, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "second call must wait for the first body")
	assert.Equal(t, int64(1), h.QueueDepth())

	require.NoError(t, resp.Close())
	resp2 := awaitResponse(t, second)
	defer resp2.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestHandle_FailureTracking(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		return textResponse(int(status.Load()), "")
	})

	metrics := &recordingMetrics{}
	h := NewHandle(testConfig("a", 1), client, HandleOptions{Metrics: metrics}, createTestLogger())
	startHandle(t, h)

	call := func() int {
		c, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
		require.NoError(t, err)
		resp := awaitResponse(t, c)
		_ = resp.Close()
		return resp.StatusCode
	}

	call()
	call()
	assert.Equal(t, 2, h.Failures())
	assert.True(t, h.Healthy())

	status.Store(http.StatusTooManyRequests)
	call()
	assert.Equal(t, 3, h.Failures())
	assert.False(t, h.Healthy())
	assert.False(t, h.Eligible())

	status.Store(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, call())
	assert.Equal(t, 0, h.Failures())
	assert.True(t, h.Healthy())

	assert.Equal(t, []string{
		constants.OutcomeServerError, constants.OutcomeServerError,
		constants.OutcomeOverload, constants.OutcomeClientError,
	}, metrics.Outcomes())
	assert.Equal(t, []bool{false, true}, metrics.health)
}

func TestHandle_TransportErrorRecordsDescription(t *testing.T) {
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		resp := domain.NewSSEErrorResponse(http.StatusInternalServerError, "connection refused")
		resp.Err = errors.New("connection refused")
		return resp
	})

	h := NewHandle(testConfig("a", 1), client, HandleOptions{}, createTestLogger())
	startHandle(t, h)

	c, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	resp := awaitResponse(t, c)
	defer resp.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, h.Failures())
	assert.Equal(t, "connection refused", h.Snapshot().LastError)
	assert.Equal(t, int64(0), h.InFlight(), "failed calls release their slot immediately")
}

func TestHandle_InvokeTimeout(t *testing.T) {
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		<-ctx.Done()
		return textResponse(http.StatusOK, "too late")
	})

	h := NewHandle(testConfig("slow", 1), client, HandleOptions{InvokeTimeout: 30 * time.Millisecond}, createTestLogger())
	startHandle(t, h)

	c, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	resp := awaitResponse(t, c)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, constants.ContentTypeEventStream, resp.Header.Get(constants.ContentTypeHeader))
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "did not respond within")
	assert.True(t, strings.HasSuffix(string(body), "data: [DONE]\n\n"))
	assert.Equal(t, 1, h.Failures())
	assert.Equal(t, int64(0), h.InFlight())
}

func TestHandle_DropsAbandonedJobs(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		calls.Add(1)
		<-release
		return textResponse(http.StatusOK, "ok")
	})

	metrics := &recordingMetrics{}
	h := NewHandle(testConfig("a", 1), client, HandleOptions{Metrics: metrics}, createTestLogger())
	startHandle(t, h)

	busy, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	_, err = h.Submit(ctx, newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	cancel()

	close(release)
	resp := awaitResponse(t, busy)
	require.NoError(t, resp.Close())

	assert.Eventually(t, func() bool { return h.QueueDepth() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, metrics.Outcomes(), constants.OutcomeAbandoned)
}

func TestHandle_FullQueueBlocksUntilContextDone(t *testing.T) {
	release := make(chan struct{})
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		<-release
		return textResponse(http.StatusOK, "ok")
	})

	h := NewHandle(testConfig("a", 1), client, HandleOptions{QueueCapacity: 1}, createTestLogger())
	startHandle(t, h)
	defer close(release)

	_, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = h.Submit(ctx, newRequest(), constants.AttemptPrimary)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPool_StopFailsQueuedJobs(t *testing.T) {
	release := make(chan struct{})
	client := ports.BackendClientFunc(func(ctx context.Context, req *domain.Request) *domain.Response {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return textResponse(http.StatusOK, "ok")
	})

	pool, err := NewPool([]domain.EndpointConfig{testConfig("a", 1)},
		func(domain.EndpointConfig) (ports.BackendClient, error) { return client, nil },
		HandleOptions{}, createTestLogger())
	require.NoError(t, err)
	pool.Start(context.Background())

	h, ok := pool.Get("a")
	require.True(t, ok)

	_, err = h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	queued, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)

	close(release)
	go func() { _ = pool.Stop() }()

	resp := awaitResponse(t, queued)
	defer resp.Close()
	// either the worker picked it up before stopping or the drain failed it
	assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
		return errors.Is(err, domain.ErrQueueClosed)
	}, time.Second, 5*time.Millisecond)
}

func TestNewPool(t *testing.T) {
	factory := func(domain.EndpointConfig) (ports.BackendClient, error) {
		return ports.BackendClientFunc(func(context.Context, *domain.Request) *domain.Response { return nil }), nil
	}

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := NewPool([]domain.EndpointConfig{testConfig("a", 1), testConfig("a", 2)}, factory, HandleOptions{}, createTestLogger())
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		pool, err := NewPool([]domain.EndpointConfig{testConfig("a", 0)}, factory, HandleOptions{}, createTestLogger())
		require.NoError(t, err)
		require.Equal(t, 1, pool.Len())

		snap := pool.Snapshots()[0]
		assert.Equal(t, 1, snap.MaxConcurrent)
		assert.Equal(t, 1, snap.Weight)
		assert.Equal(t, constants.DefaultQueueCapacity, snap.QueueCapacity)
		assert.True(t, snap.Healthy)
		assert.Equal(t, constants.ProtocolOpenAI, snap.Protocol)
	})

	t.Run("factory errors are wrapped", func(t *testing.T) {
		_, err := NewPool([]domain.EndpointConfig{testConfig("a", 1)},
			func(domain.EndpointConfig) (ports.BackendClient, error) { return nil, errors.New("bad protocol") },
			HandleOptions{}, createTestLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backend a")
	})
}

func TestHandle_NilResponseIsTransportFailure(t *testing.T) {
	h := NewHandle(testConfig("a", 1),
		ports.BackendClientFunc(func(context.Context, *domain.Request) *domain.Response { return nil }),
		HandleOptions{}, createTestLogger())
	startHandle(t, h)

	c, err := h.Submit(context.Background(), newRequest(), constants.AttemptPrimary)
	require.NoError(t, err)
	resp := awaitResponse(t, c)
	defer resp.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, h.Failures())
}

type trackedBody struct {
	io.Reader
	onClose func()
	once    sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(b.onClose)
	return nil
}
