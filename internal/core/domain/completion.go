package domain

import (
	"context"
	"sync"
)

// Completion is a one-shot, best-effort handoff of a Response. Deliver never
// blocks: a response that arrives after the waiter walked away is closed so
// upstream connections and concurrency slots are not leaked.
type Completion struct {
	ch        chan *Response
	mu        sync.Mutex
	delivered bool
	abandoned bool
}

func NewCompletion() *Completion {
	return &Completion{ch: make(chan *Response, 1)}
}

func (c *Completion) Deliver(resp *Response) bool {
	if resp == nil {
		return false
	}

	c.mu.Lock()
	if c.delivered {
		c.mu.Unlock()
		_ = resp.Close()
		return false
	}
	c.delivered = true
	if c.abandoned {
		c.mu.Unlock()
		_ = resp.Close()
		return false
	}
	c.ch <- resp
	c.mu.Unlock()
	return true
}

func (c *Completion) Await(ctx context.Context) (*Response, error) {
	select {
	case resp := <-c.ch:
		return resp, nil
	case <-ctx.Done():
		c.Abandon()
		return nil, ctx.Err()
	}
}

// Abandon marks the waiter as gone and releases anything already delivered
func (c *Completion) Abandon() {
	c.mu.Lock()
	c.abandoned = true
	c.mu.Unlock()

	select {
	case resp := <-c.ch:
		_ = resp.Close()
	default:
	}
}

func (c *Completion) Delivered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delivered
}
