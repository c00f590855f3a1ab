package pool

// Pool is a typed sync.Pool. Objects implementing Resettable are reset on Put
// so nothing from a previous borrower leaks into the next one.
//
//	buffers, err := pool.NewLitePool(func() *[]byte {
//		buf := make([]byte, 8*1024)
//		return &buf
//	})
//	buf := buffers.Get()
//	defer buffers.Put(buf)

import (
	"errors"
	"sync"
)

var (
	ErrNilConstructor = errors.New("litepool: constructor must not be nil")
	ErrNilObject      = errors.New("litepool: constructor returned nil")
)

type Resettable interface {
	Reset()
}

type Pool[T any] struct {
	pool sync.Pool
}

func NewLitePool[T any](newFn func() T) (*Pool[T], error) {
	if newFn == nil {
		return nil, ErrNilConstructor
	}
	if any(newFn()) == nil {
		return nil, ErrNilObject
	}

	return &Pool[T]{
		pool: sync.Pool{
			New: func() any { return newFn() },
		},
	}, nil
}

func (p *Pool[T]) Get() T {
	//nolint:forcetypeassert // New always produces a T
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(v T) {
	if r, ok := any(v).(Resettable); ok {
		r.Reset()
	}
	p.pool.Put(v)
}

// NewBufferPool hands out fixed size copy buffers for relaying response bodies
func NewBufferPool(size int) (*Pool[*[]byte], error) {
	if size <= 0 {
		return nil, errors.New("litepool: buffer size must be positive")
	}
	return NewLitePool(func() *[]byte {
		buf := make([]byte, size)
		return &buf
	})
}
