package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
)

const (
	defaultQueueCapacity = constants.DefaultQueueCapacity
	defaultInvokeTimeout = constants.DefaultInvokeTimeout
)

type job struct {
	enqueuedAt time.Time
	ctx        context.Context
	request    *domain.Request
	completion *domain.Completion
	attempt    string
}

// run is one worker. A handle runs MaxConcurrent of them for the life of the
// pool, each holds a slot from dequeue until the upstream body is closed.
func (h *Handle) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-h.queue:
			h.process(ctx, j)
		}
	}
}

func (h *Handle) process(workerCtx context.Context, j *job) {
	if j.ctx.Err() != nil {
		h.pending.Add(-1)
		h.dropAbandoned(j, "caller gone before dispatch")
		return
	}

	if err := h.acquire(workerCtx, j.ctx); err != nil {
		h.pending.Add(-1)
		if j.ctx.Err() != nil {
			h.dropAbandoned(j, "caller gone while waiting for a slot")
			return
		}
		j.completion.Deliver(shuttingDownResponse())
		return
	}
	h.inFlight.Add(1)
	h.pending.Add(-1)

	invokeCtx, cancel := context.WithCancel(j.ctx)
	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			h.inFlight.Add(-1)
			h.slots.Release(1)
		})
	}

	start := time.Now()
	resp, outcome := h.invoke(invokeCtx, j)
	latency := time.Since(start)
	h.lastUsed.Store(time.Now().UnixNano())

	if outcome == constants.OutcomeAbandoned {
		release()
		h.metrics.RecordAttempt(h.config.Name, j.attempt, outcome, 0, latency)
		h.logger.Debug("Caller went away during backend call", "request_id", j.request.ID, "latency", latency)
		return
	}

	wasHealthy := h.tracker.Healthy()
	outcome = h.applyHealth(resp, outcome)
	nowHealthy := h.tracker.Healthy()

	h.metrics.RecordAttempt(h.config.Name, j.attempt, outcome, resp.StatusCode, latency)
	if wasHealthy != nowHealthy {
		failures := h.tracker.Failures()
		h.metrics.RecordBackendHealth(h.config.Name, nowHealthy, failures)
		h.logger.InfoHealthStatus("Backend", h.config.Name, nowHealthy,
			"failures", failures, "last_error", h.tracker.LastError())
	}

	resp.Backend = h.config.Name
	if resp.Err != nil || resp.Body == nil || resp.Body == http.NoBody {
		// nothing left streaming from upstream
		release()
		if resp.Body == nil {
			resp.Body = http.NoBody
		}
	} else {
		resp.Body = &releasingBody{ReadCloser: resp.Body, release: release}
	}

	if !j.completion.Deliver(resp) {
		h.logger.Debug("Discarded late response", "request_id", j.request.ID, "status", resp.StatusCode)
	}
}

// acquire waits for a free slot until either the caller or the pool gives up
func (h *Handle) acquire(workerCtx, callerCtx context.Context) error {
	ctx, cancel := context.WithCancel(callerCtx)
	defer cancel()
	stop := context.AfterFunc(workerCtx, cancel)
	defer stop()
	return h.slots.Acquire(ctx, 1)
}

// invoke calls the client under the invoke timeout. The timeout only covers
// the wait for response headers, the body is governed by the caller after that.
func (h *Handle) invoke(ctx context.Context, j *job) (*domain.Response, string) {
	resultCh := make(chan *domain.Response, 1)
	go func() {
		resultCh <- h.client.Invoke(ctx, j.request)
	}()

	timer := time.NewTimer(h.invokeTimeout)
	defer timer.Stop()

	select {
	case resp := <-resultCh:
		if resp == nil {
			err := fmt.Errorf("backend %s returned no response", h.config.Name)
			return failureResponse(err), constants.OutcomeTransport
		}
		return resp, ""
	case <-timer.C:
		go closeLate(resultCh)
		err := fmt.Errorf("backend %s did not respond within %v", h.config.Name, h.invokeTimeout)
		return failureResponse(err), constants.OutcomeTimeout
	case <-j.ctx.Done():
		go closeLate(resultCh)
		return nil, constants.OutcomeAbandoned
	}
}

// applyHealth feeds the result into the tracker and returns the outcome class
func (h *Handle) applyHealth(resp *domain.Response, outcome string) string {
	switch {
	case outcome != "":
		h.tracker.RecordFailure(resp.Err.Error())
		return outcome
	case resp.Err != nil:
		h.tracker.RecordFailure(resp.Err.Error())
		return constants.OutcomeTransport
	default:
		return h.tracker.RecordStatus(resp.StatusCode)
	}
}

func (h *Handle) dropAbandoned(j *job, reason string) {
	j.completion.Abandon()
	h.metrics.RecordAttempt(h.config.Name, j.attempt, constants.OutcomeAbandoned, 0, 0)
	h.logger.Debug("Dropped queued request", "request_id", j.request.ID, "reason", reason,
		"queued_for", time.Since(j.enqueuedAt))
}

// drain fails whatever is still queued once the workers have stopped
func (h *Handle) drain() {
	for {
		select {
		case j := <-h.queue:
			h.pending.Add(-1)
			j.completion.Deliver(shuttingDownResponse())
		default:
			return
		}
	}
}

func failureResponse(err error) *domain.Response {
	resp := domain.NewSSEErrorResponse(http.StatusInternalServerError, err.Error())
	resp.Err = err
	return resp
}

func shuttingDownResponse() *domain.Response {
	return domain.NewErrorResponse(http.StatusServiceUnavailable, "proxy is shutting down", "service_unavailable")
}

func closeLate(ch <-chan *domain.Response) {
	if late := <-ch; late != nil {
		_ = late.Close()
	}
}

// releasingBody gives the concurrency slot back exactly once, when the
// consumer closes the body
type releasingBody struct {
	io.ReadCloser
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
