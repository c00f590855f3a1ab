package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/corral-proxy/corral/internal/adapter/backend"
	"github.com/corral-proxy/corral/internal/adapter/balancer"
	"github.com/corral-proxy/corral/internal/core/constants"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

const (
	UnroutableNoBackends      = "no_backends"
	UnroutableNoLocalBackends = "no_local_backends"
	UnroutableQueueClosed     = "queue_closed"
	UnroutableAwaitTimeout    = "await_timeout"
	UnroutableCancelled       = "cancelled"
)

// Dispatcher turns a request into exactly one response: it picks a backend,
// admits the request to that backend's queue and, on overload or a server
// error, fails over once to a different backend.
type Dispatcher struct {
	selector     balancer.Selector
	metrics      ports.DispatchMetrics
	stats        ports.StatsCollector
	logger       logger.StyledLogger
	handles      map[string]*backend.Handle
	candidates   []balancer.Candidate
	awaitTimeout time.Duration
}

type Config struct {
	Metrics      ports.DispatchMetrics
	Stats        ports.StatsCollector
	AwaitTimeout time.Duration
}

func New(pool *backend.Pool, selector balancer.Selector, cfg Config, log logger.StyledLogger) *Dispatcher {
	if cfg.AwaitTimeout <= 0 {
		cfg.AwaitTimeout = constants.DefaultAwaitTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = ports.NoopDispatchMetrics()
	}

	d := &Dispatcher{
		selector:     selector,
		metrics:      cfg.Metrics,
		stats:        cfg.Stats,
		logger:       log,
		handles:      make(map[string]*backend.Handle, pool.Len()),
		candidates:   make([]balancer.Candidate, 0, pool.Len()),
		awaitTimeout: cfg.AwaitTimeout,
	}
	for _, h := range pool.Handles() {
		d.handles[h.Name()] = h
		d.candidates = append(d.candidates, h)
	}
	return d
}

// Route dispatches the request and blocks until its response is ready or the
// await deadline passes. It always returns a response.
func (d *Dispatcher) Route(ctx context.Context, req *domain.Request) *domain.Response {
	d.Submit(ctx, req)
	return d.Await(ctx, req)
}

// Submit starts dispatching in the background and returns straight away,
// the outcome lands in the request's completion slot. ctx must stay alive for
// as long as the response body is being read.
func (d *Dispatcher) Submit(ctx context.Context, req *domain.Request) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Dispatch panicked", "request_id", req.ID, "panic", r)
				req.Complete(domain.NewErrorResponse(http.StatusInternalServerError,
					"internal dispatch error", "proxy_error"))
			}
		}()
		req.Complete(d.dispatch(ctx, req))
	}()
}

// Await waits for a submitted request. Waiting is bounded by the await
// timeout measured from when the request was received, independent of the
// backend invoke timeout. A response that turns up later is closed.
func (d *Dispatcher) Await(ctx context.Context, req *domain.Request) *domain.Response {
	waitCtx, cancel := context.WithDeadline(ctx, req.ReceivedAt.Add(d.awaitTimeout))
	defer cancel()

	resp, err := req.Await(waitCtx)
	if err == nil {
		return resp
	}
	return d.waitFailed(ctx, req, err)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *domain.Request) *domain.Response {
	rlog := d.logger.WithRequestID(req.ID)

	if len(d.candidates) == 0 {
		d.metrics.RecordUnroutable(UnroutableNoBackends)
		rlog.Warn("No backends configured, rejecting request")
		return domain.NewErrorResponse(http.StatusServiceUnavailable,
			"no backends are configured", "service_unavailable")
	}

	waitCtx, cancel := context.WithDeadline(ctx, req.ReceivedAt.Add(d.awaitTimeout))
	defer cancel()

	primary, err := d.pick(balancer.Options{LocalOnly: req.LocalOnly})
	if err != nil {
		return d.unroutable(rlog, req, err)
	}

	resp, err := d.attempt(ctx, waitCtx, primary, req, constants.AttemptPrimary)
	if err != nil {
		return d.timeoutResponse()
	}
	if !domain.IsRetryable(resp.StatusCode) {
		return resp
	}

	primaryStatus := resp.StatusCode
	_ = resp.Close()

	fallback, err := d.pick(balancer.Avoiding(req.LocalOnly, primary.Name()))
	if err != nil {
		return d.unroutable(rlog, req, err)
	}

	d.metrics.RecordFailover(primary.Name(), fallback.Name())
	if d.stats != nil {
		d.stats.RecordFailover(primary.Name())
	}
	rlog.WarnFailover("Failing over", primary.Name(), fallback.Name(),
		"primary_status", primaryStatus, "local_only", req.LocalOnly)

	resp, err = d.attempt(ctx, waitCtx, fallback, req, constants.AttemptFailover)
	if err != nil {
		return d.timeoutResponse()
	}
	resp.FailedOver = true
	return resp
}

// attempt admits the request to one backend and waits for its response
func (d *Dispatcher) attempt(ctx, waitCtx context.Context, h *backend.Handle, req *domain.Request, label string) (*domain.Response, error) {
	completion, err := h.Submit(ctx, req, label)
	if err != nil {
		if errors.Is(err, domain.ErrQueueClosed) {
			d.metrics.RecordUnroutable(UnroutableQueueClosed)
			return domain.NewErrorResponse(http.StatusServiceUnavailable,
				"proxy is shutting down", "service_unavailable"), nil
		}
		return nil, err
	}
	return completion.Await(waitCtx)
}

// pick selects a backend, claiming the recovery probe when the selector hands
// back an unhealthy backend that is only eligible because a probe is due. A
// lost claim sends the selector round again without that backend.
func (d *Dispatcher) pick(opts balancer.Options) (*backend.Handle, error) {
	var chosen *backend.Handle
	for tries := 0; tries <= len(d.candidates); tries++ {
		c, err := d.selector.Select(d.candidates, opts)
		if err != nil {
			return nil, err
		}
		chosen = d.handles[c.Name()]
		if chosen.Healthy() || !chosen.Eligible() || chosen.ClaimProbe() {
			return chosen, nil
		}

		avoid := make([]string, 0, len(opts.Avoid)+1)
		for name := range opts.Avoid {
			avoid = append(avoid, name)
		}
		opts = balancer.Avoiding(opts.LocalOnly, append(avoid, chosen.Name())...)
	}
	return chosen, nil
}

func (d *Dispatcher) unroutable(rlog logger.StyledLogger, req *domain.Request, err error) *domain.Response {
	reason, message := UnroutableNoBackends, "no backends are available"
	if req.LocalOnly {
		reason, message = UnroutableNoLocalBackends, "localOnly was requested but no local-hosted backends are configured"
	}
	d.metrics.RecordUnroutable(reason)
	rlog.Warn("Request cannot be routed", "reason", reason, "error", err)
	return domain.NewErrorResponse(http.StatusServiceUnavailable, message, "service_unavailable")
}

// waitFailed is reported by Await, the dispatch goroutine only needs to hand
// something to a completion slot nobody is waiting on any more
func (d *Dispatcher) waitFailed(ctx context.Context, req *domain.Request, err error) *domain.Response {
	if ctx.Err() != nil {
		// the caller is gone, nobody will read this
		d.metrics.RecordUnroutable(UnroutableCancelled)
		return domain.NewErrorResponse(http.StatusServiceUnavailable, "request cancelled", "cancelled")
	}

	d.metrics.RecordUnroutable(UnroutableAwaitTimeout)
	d.logger.Warn("Gave up waiting for a backend response", "request_id", req.ID,
		"await_timeout", d.awaitTimeout, "error", err)
	return d.timeoutResponse()
}

func (d *Dispatcher) timeoutResponse() *domain.Response {
	return domain.NewErrorResponse(http.StatusGatewayTimeout,
		fmt.Sprintf("no backend response within %v", d.awaitTimeout), "timeout")
}
