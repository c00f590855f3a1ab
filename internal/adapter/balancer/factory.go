package balancer

import (
	"fmt"
	"sort"
	"sync"
)

const DefaultBalancerLeastLoaded = "least-loaded"
const DefaultBalancerWeightedRoundRobin = "weighted-round-robin"

type Factory struct {
	creators map[string]func() Selector
	mu       sync.RWMutex
}

func NewFactory() *Factory {
	factory := &Factory{
		creators: make(map[string]func() Selector),
	}

	factory.Register(DefaultBalancerLeastLoaded, func() Selector {
		return NewLeastLoadedSelector()
	})
	factory.Register(DefaultBalancerWeightedRoundRobin, func() Selector {
		return NewWeightedRoundRobinSelector()
	})

	return factory
}

func (f *Factory) Register(name string, creator func() Selector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[name] = creator
}

func (f *Factory) Create(name string) (Selector, error) {
	if name == "" {
		name = DefaultBalancerLeastLoaded
	}

	f.mu.RLock()
	creator, exists := f.creators[name]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unknown load balancer strategy: %s", name)
	}

	return creator(), nil
}

func (f *Factory) GetAvailableStrategies() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	strategies := make([]string, 0, len(f.creators))
	for name := range f.creators {
		strategies = append(strategies, name)
	}
	sort.Strings(strategies)
	return strategies
}
