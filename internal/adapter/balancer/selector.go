package balancer

import (
	"time"

	"github.com/corral-proxy/corral/internal/core/domain"
)

// Candidate is the view of a backend handle a selector needs
type Candidate interface {
	Name() string
	InFlight() int64
	QueueDepth() int64
	MaxConcurrent() int
	Weight() int
	LastUsedAt() time.Time
	Eligible() bool
	IsLocal() bool
}

type Options struct {
	Avoid     map[string]struct{}
	LocalOnly bool
}

// Avoiding builds Options that steer away from the named backends
func Avoiding(localOnly bool, names ...string) Options {
	opts := Options{LocalOnly: localOnly}
	if len(names) > 0 {
		opts.Avoid = make(map[string]struct{}, len(names))
		for _, name := range names {
			opts.Avoid[name] = struct{}{}
		}
	}
	return opts
}

type Selector interface {
	Select(candidates []Candidate, opts Options) (Candidate, error)
	Name() string
}

// narrow applies the filters every strategy shares, in order: local-only,
// avoid and eligibility. The avoid and eligibility filters fall back to
// their input when they would leave nothing, local-only never does.
func narrow(candidates []Candidate, opts Options) ([]Candidate, error) {
	pool := candidates
	if opts.LocalOnly {
		pool = filter(pool, func(c Candidate) bool { return c.IsLocal() })
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoCandidate
	}

	if len(opts.Avoid) > 0 {
		if kept := filter(pool, func(c Candidate) bool {
			_, avoid := opts.Avoid[c.Name()]
			return !avoid
		}); len(kept) > 0 {
			pool = kept
		}
	}

	if eligible := filter(pool, Candidate.Eligible); len(eligible) > 0 {
		pool = eligible
	}
	return pool, nil
}

func filter(candidates []Candidate, keep func(Candidate) bool) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}
