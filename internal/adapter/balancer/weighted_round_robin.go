package balancer

import (
	"sync/atomic"
)

// WeightedRoundRobinSelector rotates through the narrowed candidates, giving
// each as many turns per cycle as its weight. Load is ignored.
type WeightedRoundRobinSelector struct {
	counter atomic.Uint64
}

func NewWeightedRoundRobinSelector() *WeightedRoundRobinSelector {
	return &WeightedRoundRobinSelector{}
}

func (w *WeightedRoundRobinSelector) Name() string {
	return DefaultBalancerWeightedRoundRobin
}

func (w *WeightedRoundRobinSelector) Select(candidates []Candidate, opts Options) (Candidate, error) {
	pool, err := narrow(candidates, opts)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range pool {
		total += weightOf(c)
	}

	current := w.counter.Add(1) - 1
	slot := int(current % uint64(total))
	for _, c := range pool {
		slot -= weightOf(c)
		if slot < 0 {
			return c, nil
		}
	}
	return pool[len(pool)-1], nil
}

func weightOf(c Candidate) int {
	if weight := c.Weight(); weight > 0 {
		return weight
	}
	return 1
}
