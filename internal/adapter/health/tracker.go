package health

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/corral-proxy/corral/internal/core/constants"
)

// Tracker owns the failure counter of a single backend. Healthy is derived from
// the counter on every read and never stored.
//
// With a zero cooldown an unhealthy backend stays out of the healthy pool for
// the life of the process. A positive cooldown lets exactly one probe through
// per window once the window has elapsed since the last failure (or the last
// probe claim).
type Tracker struct {
	lastFailureAt  time.Time
	probeClaimedAt time.Time
	now            func() time.Time
	lastError      string
	failures       int
	threshold      int
	cooldown       time.Duration
	mu             sync.Mutex
}

func NewTracker(threshold int, cooldown time.Duration) *Tracker {
	if threshold < 1 {
		threshold = constants.DefaultFailureThreshold
	}
	if cooldown < 0 {
		cooldown = 0
	}
	return &Tracker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// RecordStatus classifies a completed attempt and applies it, returning the
// outcome class for logging and metrics
func (t *Tracker) RecordStatus(statusCode int) string {
	outcome := Classify(statusCode)
	if IsFailure(outcome) {
		t.RecordFailure(fmt.Sprintf("HTTP %d %s", statusCode, http.StatusText(statusCode)))
	} else {
		t.RecordSuccess()
	}
	return outcome
}

func (t *Tracker) RecordSuccess() {
	t.mu.Lock()
	t.failures = 0
	t.lastError = ""
	t.probeClaimedAt = time.Time{}
	t.mu.Unlock()
}

func (t *Tracker) RecordFailure(description string) {
	t.mu.Lock()
	t.failures++
	t.lastError = description
	t.lastFailureAt = t.now()
	t.mu.Unlock()
}

func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

func (t *Tracker) LastError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

func (t *Tracker) Healthy() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures < t.threshold
}

// ProbeDue reports whether an unhealthy backend may take a recovery probe now
func (t *Tracker) ProbeDue() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.probeDueLocked()
}

// ClaimProbe takes the probe for the current window. Only one caller per
// window gets true, everybody else has to wait for the next one.
func (t *Tracker) ClaimProbe() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.probeDueLocked() {
		return false
	}
	t.probeClaimedAt = t.now()
	return true
}

func (t *Tracker) probeDueLocked() bool {
	if t.cooldown == 0 || t.failures < t.threshold {
		return false
	}
	since := t.lastFailureAt
	if t.probeClaimedAt.After(since) {
		since = t.probeClaimedAt
	}
	return t.now().Sub(since) >= t.cooldown
}

func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Failures:      t.failures,
		LastError:     t.lastError,
		LastFailureAt: t.lastFailureAt,
		Healthy:       t.failures < t.threshold,
		ProbeDue:      t.probeDueLocked(),
	}
}
