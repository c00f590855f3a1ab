package pool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scratch struct {
	data []string
}

func (s *scratch) Reset() { s.data = s.data[:0] }

func TestNewLitePool_RejectsBadConstructors(t *testing.T) {
	_, err := NewLitePool[*scratch](nil)
	assert.ErrorIs(t, err, ErrNilConstructor)

	_, err = NewLitePool(func() *scratch { return nil })
	assert.ErrorIs(t, err, ErrNilObject)
}

func TestPool_ResetsOnPut(t *testing.T) {
	p, err := NewLitePool(func() *scratch { return &scratch{} })
	require.NoError(t, err)

	s := p.Get()
	s.data = append(s.data, "left over")
	p.Put(s)

	assert.Empty(t, s.data)
}

func TestNewBufferPool(t *testing.T) {
	_, err := NewBufferPool(0)
	assert.Error(t, err)

	p, err := NewBufferPool(8 * 1024)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := p.Get()
			assert.Len(t, *buf, 8*1024)
			p.Put(buf)
		}()
	}
	wg.Wait()
}
