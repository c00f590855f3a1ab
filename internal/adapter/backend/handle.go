package backend

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/corral-proxy/corral/internal/adapter/health"
	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

// Handle is the runtime state of one configured backend: its client, its
// admission queue, the slot limiter and the failure tracker. Handles are
// built once by the Pool and never added or removed afterwards.
type Handle struct {
	client   ports.BackendClient
	tracker  *health.Tracker
	slots    *semaphore.Weighted
	queue    chan *job
	stopped  chan struct{}
	metrics  ports.DispatchMetrics
	logger   logger.StyledLogger
	config   domain.EndpointConfig
	inFlight atomic.Int64
	pending  atomic.Int64
	lastUsed atomic.Int64 // unix nano

	invokeTimeout time.Duration
}

type HandleOptions struct {
	Metrics          ports.DispatchMetrics
	QueueCapacity    int
	FailureThreshold int
	InvokeTimeout    time.Duration
	RecoveryCooldown time.Duration
}

func NewHandle(cfg domain.EndpointConfig, client ports.BackendClient, opts HandleOptions, log logger.StyledLogger) *Handle {
	cfg = cfg.Normalise()
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = defaultQueueCapacity
	}
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = defaultInvokeTimeout
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NoopDispatchMetrics()
	}

	return &Handle{
		config:        cfg,
		client:        client,
		tracker:       health.NewTracker(opts.FailureThreshold, opts.RecoveryCooldown),
		slots:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		queue:         make(chan *job, opts.QueueCapacity),
		stopped:       make(chan struct{}),
		metrics:       opts.Metrics,
		logger:        log.With("backend", cfg.Name),
		invokeTimeout: opts.InvokeTimeout,
	}
}

func (h *Handle) Name() string                  { return h.config.Name }
func (h *Handle) Config() domain.EndpointConfig { return h.config }
func (h *Handle) MaxConcurrent() int            { return h.config.MaxConcurrent }
func (h *Handle) Weight() int                   { return h.config.Weight }
func (h *Handle) IsLocal() bool                 { return h.config.Type.IsLocal() }
func (h *Handle) InFlight() int64               { return h.inFlight.Load() }

// QueueDepth counts jobs admitted to this backend that have not started yet,
// including one a worker has just dequeued and is still acquiring a slot for
func (h *Handle) QueueDepth() int64 { return h.pending.Load() }

func (h *Handle) QueueCapacity() int { return cap(h.queue) }

func (h *Handle) LastUsedAt() time.Time {
	nanos := h.lastUsed.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (h *Handle) Healthy() bool { return h.tracker.Healthy() }
func (h *Handle) Failures() int { return h.tracker.Failures() }

// Eligible is true for healthy backends and for unhealthy ones that are due
// a recovery probe
func (h *Handle) Eligible() bool {
	return h.tracker.Healthy() || h.tracker.ProbeDue()
}

// ClaimProbe must be called by whoever routes to an unhealthy backend, losing
// the claim means someone else already took this window's probe
func (h *Handle) ClaimProbe() bool {
	return h.tracker.ClaimProbe()
}

// Submit admits a request to this backend's queue and returns the completion
// slot for this attempt. It blocks while the queue is full.
func (h *Handle) Submit(ctx context.Context, req *domain.Request, attempt string) (*domain.Completion, error) {
	j := &job{
		ctx:        ctx,
		request:    req,
		attempt:    attempt,
		completion: domain.NewCompletion(),
		enqueuedAt: time.Now(),
	}
	if err := h.enqueue(ctx, j); err != nil {
		return nil, err
	}
	return j.completion, nil
}

func (h *Handle) enqueue(ctx context.Context, j *job) error {
	select {
	case <-h.stopped:
		return domain.ErrQueueClosed
	default:
	}

	h.pending.Add(1)
	select {
	case h.queue <- j:
		return nil
	case <-ctx.Done():
		h.pending.Add(-1)
		return ctx.Err()
	case <-h.stopped:
		h.pending.Add(-1)
		return domain.ErrQueueClosed
	}
}

func (h *Handle) Snapshot() ports.BackendSnapshot {
	state := h.tracker.State()
	return ports.BackendSnapshot{
		Name:          h.config.Name,
		URL:           h.config.URLString(),
		Type:          h.config.Type.String(),
		Protocol:      h.config.Protocol,
		Weight:        h.config.Weight,
		MaxConcurrent: h.config.MaxConcurrent,
		InFlight:      h.inFlight.Load(),
		QueueDepth:    int(h.pending.Load()),
		QueueCapacity: cap(h.queue),
		Failures:      state.Failures,
		Healthy:       state.Healthy,
		LastError:     state.LastError,
		LastUsedAt:    h.LastUsedAt(),
	}
}
