package backend

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/corral-proxy/corral/internal/core/domain"
	"github.com/corral-proxy/corral/internal/core/ports"
	"github.com/corral-proxy/corral/internal/logger"
)

// ClientFactory builds the wire adapter for a backend
type ClientFactory func(cfg domain.EndpointConfig) (ports.BackendClient, error)

// Pool owns every backend handle and their workers. The handle set is fixed
// at construction.
type Pool struct {
	group   *errgroup.Group
	cancel  context.CancelFunc
	byName  map[string]*Handle
	logger  logger.StyledLogger
	handles []*Handle
	mu      sync.Mutex
	running bool
}

func NewPool(configs []domain.EndpointConfig, factory ClientFactory, opts HandleOptions, log logger.StyledLogger) (*Pool, error) {
	p := &Pool{
		handles: make([]*Handle, 0, len(configs)),
		byName:  make(map[string]*Handle, len(configs)),
		logger:  log,
	}

	for _, cfg := range configs {
		cfg = cfg.Normalise()
		if _, exists := p.byName[cfg.Name]; exists {
			return nil, fmt.Errorf("duplicate backend name %q", cfg.Name)
		}

		client, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", cfg.Name, err)
		}

		h := NewHandle(cfg, client, opts, log)
		p.handles = append(p.handles, h)
		p.byName[cfg.Name] = h
	}

	return p, nil
}

// Start launches MaxConcurrent workers per handle
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.group, ctx = errgroup.WithContext(ctx)
	for _, h := range p.handles {
		for i := 0; i < h.MaxConcurrent(); i++ {
			p.group.Go(func() error {
				return h.run(ctx)
			})
		}
		p.logger.InfoWithBackend("Started workers for", h.Name(),
			"workers", h.MaxConcurrent(),
			"type", h.config.Type.String(),
			"protocol", h.config.Protocol,
			"weight", h.Weight())
	}
	p.running = true
}

// Stop stops the workers and fails anything still queued with a 503.
// Responses already handed out keep streaming until their bodies are closed.
func (p *Pool) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	for _, h := range p.handles {
		close(h.stopped)
	}
	p.cancel()
	err := p.group.Wait()

	for _, h := range p.handles {
		h.drain()
	}
	return err
}

func (p *Pool) Handles() []*Handle {
	return p.handles
}

func (p *Pool) Get(name string) (*Handle, bool) {
	h, ok := p.byName[name]
	return h, ok
}

func (p *Pool) Len() int {
	return len(p.handles)
}

func (p *Pool) Snapshots() []ports.BackendSnapshot {
	snapshots := make([]ports.BackendSnapshot, 0, len(p.handles))
	for _, h := range p.handles {
		snapshots = append(snapshots, h.Snapshot())
	}
	return snapshots
}
