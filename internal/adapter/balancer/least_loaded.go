package balancer

// LeastLoadedSelector prefers a backend with a free slot, then the fewest
// in-flight calls, then the fewest queued ones, then the highest weight and
// finally whoever has been idle longest.
type LeastLoadedSelector struct{}

func NewLeastLoadedSelector() *LeastLoadedSelector {
	return &LeastLoadedSelector{}
}

func (l *LeastLoadedSelector) Name() string {
	return DefaultBalancerLeastLoaded
}

func (l *LeastLoadedSelector) Select(candidates []Candidate, opts Options) (Candidate, error) {
	pool, err := narrow(candidates, opts)
	if err != nil {
		return nil, err
	}

	best := pool[0]
	for _, c := range pool[1:] {
		if better(c, best) {
			best = c
		}
	}
	return best, nil
}

func hasFreeSlot(c Candidate) bool {
	return c.InFlight()+c.QueueDepth() < int64(c.MaxConcurrent())
}

// better reports whether a ranks strictly ahead of b, ties keep config order
func better(a, b Candidate) bool {
	if freeA, freeB := hasFreeSlot(a), hasFreeSlot(b); freeA != freeB {
		return freeA
	}
	if a.InFlight() != b.InFlight() {
		return a.InFlight() < b.InFlight()
	}
	if a.QueueDepth() != b.QueueDepth() {
		return a.QueueDepth() < b.QueueDepth()
	}
	if a.Weight() != b.Weight() {
		return a.Weight() > b.Weight()
	}
	return a.LastUsedAt().Before(b.LastUsedAt())
}
