package theater

import (
	"sync"
	"time"

	"github.com/stwalsh4118/cinema/internal/scheduler"
)

// BreakerState is the state of one registration's failure breaker
type BreakerState int

const (
	// BreakerClosed means steps are failing below the threshold
	BreakerClosed BreakerState = iota
	// BreakerOpen means the threshold was reached and the playback is stopped
	BreakerOpen
)

// String returns the string representation of BreakerState
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

type handleFailures struct {
	failures int
	last     time.Time
	state    BreakerState
}

// failureBreaker counts step failures per scheduler registration. A handle
// opens once it fails threshold times with no quiet gap of resetAfter in
// between. A threshold of zero disables it.
type failureBreaker struct {
	threshold  int
	resetAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	handles map[scheduler.Handle]*handleFailures
}

func newFailureBreaker(threshold int, resetAfter time.Duration) *failureBreaker {
	return &failureBreaker{
		threshold:  threshold,
		resetAfter: resetAfter,
		now:        time.Now,
		handles:    make(map[scheduler.Handle]*handleFailures),
	}
}

// record counts one failure and reports whether it opened the breaker
func (b *failureBreaker) record(h scheduler.Handle) bool {
	if b.threshold <= 0 {
		return false
	}
	now := b.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	hf, ok := b.handles[h]
	if !ok {
		hf = &handleFailures{}
		b.handles[h] = hf
	}
	if hf.state == BreakerOpen {
		return false
	}

	if b.resetAfter > 0 && !hf.last.IsZero() && now.Sub(hf.last) >= b.resetAfter {
		hf.failures = 0
	}
	hf.failures++
	hf.last = now

	if hf.failures >= b.threshold {
		hf.state = BreakerOpen
		return true
	}
	return false
}

// state returns the breaker state of h
func (b *failureBreaker) state(h scheduler.Handle) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hf, ok := b.handles[h]; ok {
		return hf.state
	}
	return BreakerClosed
}

// failures returns the current failure count of h
func (b *failureBreaker) failures(h scheduler.Handle) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hf, ok := b.handles[h]; ok {
		return hf.failures
	}
	return 0
}

// forget drops the counters of a registration that is gone
func (b *failureBreaker) forget(h scheduler.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, h)
}
