package balancer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corral-proxy/corral/internal/core/domain"
)

type fakeCandidate struct {
	lastUsed      time.Time
	name          string
	inFlight      int64
	queued        int64
	maxConcurrent int
	weight        int
	unhealthy     bool
	local         bool
}

func (f *fakeCandidate) Name() string          { return f.name }
func (f *fakeCandidate) InFlight() int64       { return f.inFlight }
func (f *fakeCandidate) QueueDepth() int64     { return f.queued }
func (f *fakeCandidate) MaxConcurrent() int    { return f.maxConcurrent }
func (f *fakeCandidate) Weight() int           { return f.weight }
func (f *fakeCandidate) LastUsedAt() time.Time { return f.lastUsed }
func (f *fakeCandidate) Eligible() bool        { return !f.unhealthy }
func (f *fakeCandidate) IsLocal() bool         { return f.local }

func candidate(name string) *fakeCandidate {
	return &fakeCandidate{name: name, maxConcurrent: 1, weight: 1}
}

func asCandidates(fakes ...*fakeCandidate) []Candidate {
	out := make([]Candidate, len(fakes))
	for i, f := range fakes {
		out[i] = f
	}
	return out
}

func TestFactory(t *testing.T) {
	factory := NewFactory()
	assert.Equal(t, []string{DefaultBalancerLeastLoaded, DefaultBalancerWeightedRoundRobin}, factory.GetAvailableStrategies())

	for _, name := range []string{DefaultBalancerLeastLoaded, DefaultBalancerWeightedRoundRobin} {
		selector, err := factory.Create(name)
		require.NoError(t, err)
		assert.Equal(t, name, selector.Name())
	}

	selector, err := factory.Create("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBalancerLeastLoaded, selector.Name())

	_, err = factory.Create("priority")
	assert.Error(t, err)

	factory.Register("custom", func() Selector { return NewLeastLoadedSelector() })
	_, err = factory.Create("custom")
	assert.NoError(t, err)
}

func TestLeastLoaded_Ranking(t *testing.T) {
	now := time.Now()
	selector := NewLeastLoadedSelector()

	t.Run("free slot beats lower in-flight", func(t *testing.T) {
		busy := &fakeCandidate{name: "busy", inFlight: 1, maxConcurrent: 1, weight: 1}
		roomy := &fakeCandidate{name: "roomy", inFlight: 3, maxConcurrent: 8, weight: 1}
		got, err := selector.Select(asCandidates(busy, roomy), Options{})
		require.NoError(t, err)
		assert.Equal(t, "roomy", got.Name())
	})

	t.Run("least in-flight", func(t *testing.T) {
		a := &fakeCandidate{name: "a", inFlight: 2, maxConcurrent: 4, weight: 1}
		b := &fakeCandidate{name: "b", inFlight: 1, maxConcurrent: 4, weight: 1}
		got, _ := selector.Select(asCandidates(a, b), Options{})
		assert.Equal(t, "b", got.Name())
	})

	t.Run("weight breaks ties", func(t *testing.T) {
		a := &fakeCandidate{name: "a", maxConcurrent: 1, weight: 1}
		b := &fakeCandidate{name: "b", maxConcurrent: 1, weight: 5}
		got, _ := selector.Select(asCandidates(a, b), Options{})
		assert.Equal(t, "b", got.Name())
	})

	t.Run("oldest last use breaks remaining ties", func(t *testing.T) {
		a := &fakeCandidate{name: "a", maxConcurrent: 1, weight: 1, lastUsed: now}
		b := &fakeCandidate{name: "b", maxConcurrent: 1, weight: 1, lastUsed: now.Add(-time.Minute)}
		got, _ := selector.Select(asCandidates(a, b), Options{})
		assert.Equal(t, "b", got.Name())
	})

	t.Run("all saturated still selects", func(t *testing.T) {
		a := &fakeCandidate{name: "a", inFlight: 1, queued: 4, maxConcurrent: 1, weight: 1}
		b := &fakeCandidate{name: "b", inFlight: 1, queued: 2, maxConcurrent: 1, weight: 1}
		got, err := selector.Select(asCandidates(a, b), Options{})
		require.NoError(t, err)
		assert.Equal(t, "b", got.Name())
	})

	t.Run("queued work occupies a slot", func(t *testing.T) {
		a := &fakeCandidate{name: "a", queued: 1, maxConcurrent: 1, weight: 9}
		b := &fakeCandidate{name: "b", maxConcurrent: 1, weight: 1}
		got, _ := selector.Select(asCandidates(a, b), Options{})
		assert.Equal(t, "b", got.Name())
	})
}

func TestNarrowing(t *testing.T) {
	strategies := []Selector{NewLeastLoadedSelector(), NewWeightedRoundRobinSelector()}

	for _, selector := range strategies {
		t.Run(selector.Name(), func(t *testing.T) {
			t.Run("empty list", func(t *testing.T) {
				_, err := selector.Select(nil, Options{})
				assert.ErrorIs(t, err, domain.ErrNoCandidate)
			})

			t.Run("local only never picks remote", func(t *testing.T) {
				remote := candidate("cloud")
				local := candidate("local")
				local.local = true
				local.unhealthy = true
				local.inFlight = 1

				for i := 0; i < 20; i++ {
					got, err := selector.Select(asCandidates(remote, local), Options{LocalOnly: true})
					require.NoError(t, err)
					assert.Equal(t, "local", got.Name())
				}
			})

			t.Run("local only with no local backends", func(t *testing.T) {
				_, err := selector.Select(asCandidates(candidate("cloud")), Options{LocalOnly: true})
				assert.ErrorIs(t, err, domain.ErrNoCandidate)
			})

			t.Run("unhealthy excluded while others are healthy", func(t *testing.T) {
				sick := candidate("sick")
				sick.unhealthy = true
				sick.weight = 10
				well := candidate("well")
				well.inFlight = 1

				for i := 0; i < 20; i++ {
					got, _ := selector.Select(asCandidates(sick, well), Options{})
					assert.Equal(t, "well", got.Name())
				}
			})

			t.Run("all unhealthy falls back to everyone", func(t *testing.T) {
				a, b := candidate("a"), candidate("b")
				a.unhealthy, b.unhealthy = true, true
				got, err := selector.Select(asCandidates(a, b), Options{})
				require.NoError(t, err)
				assert.Contains(t, []string{"a", "b"}, got.Name())
			})

			t.Run("avoid excludes the failed primary", func(t *testing.T) {
				a, b := candidate("a"), candidate("b")
				b.unhealthy = true
				for i := 0; i < 20; i++ {
					got, _ := selector.Select(asCandidates(a, b), Avoiding(false, "a"))
					assert.Equal(t, "b", got.Name())
				}
			})

			t.Run("avoid relaxed for a single backend", func(t *testing.T) {
				got, err := selector.Select(asCandidates(candidate("only")), Avoiding(false, "only"))
				require.NoError(t, err)
				assert.Equal(t, "only", got.Name())
			})
		})
	}
}

func TestWeightedRoundRobin_Distribution(t *testing.T) {
	selector := NewWeightedRoundRobinSelector()
	a, b := candidate("a"), candidate("b")
	a.weight = 3

	counts := map[string]int{}
	for i := 0; i < 400; i++ {
		got, err := selector.Select(asCandidates(a, b), Options{})
		require.NoError(t, err)
		counts[got.Name()]++
	}
	assert.Equal(t, 300, counts["a"])
	assert.Equal(t, 100, counts["b"])
}

func TestAvoiding(t *testing.T) {
	opts := Avoiding(true)
	assert.True(t, opts.LocalOnly)
	assert.Nil(t, opts.Avoid)

	opts = Avoiding(false, "a", "b")
	assert.Len(t, opts.Avoid, 2)
}
