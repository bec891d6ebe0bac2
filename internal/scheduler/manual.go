package scheduler

import (
	"sort"
	"sync"
)

type manualEntry struct {
	handle Handle
	task   Task
	due    int64
	period int64
}

// ManualScheduler only advances when Advance is called. Due tasks run on the
// caller's goroutine in registration order, which makes playback sequences
// reproducible.
type ManualScheduler struct {
	mu         sync.Mutex
	current    int64
	nextHandle Handle
	entries    map[Handle]*manualEntry
	failures   []TaskFailure
}

// NewManualScheduler creates a scheduler at tick 0
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{entries: make(map[Handle]*manualEntry)}
}

// Schedule registers task; it first runs once delay ticks have been advanced
// (a zero delay runs on the next tick)
func (s *ManualScheduler) Schedule(task Task, delay, period int) (Handle, error) {
	if err := validate(task, delay, period); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextHandle++
	s.entries[s.nextHandle] = &manualEntry{
		handle: s.nextHandle,
		task:   task,
		due:    s.current + int64(delay),
		period: int64(period),
	}
	return s.nextHandle, nil
}

// Cancel removes a registration
func (s *ManualScheduler) Cancel(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[h]; !ok {
		return ErrNotScheduled
	}
	delete(s.entries, h)
	return nil
}

// Advance moves time forward n ticks, running every task that falls due
func (s *ManualScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		s.step()
	}
}

func (s *ManualScheduler) step() {
	s.mu.Lock()
	s.current++
	now := s.current
	due := make([]*manualEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.due <= now {
			due = append(due, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].handle < due[j].handle })

	for _, e := range due {
		// An earlier task in this tick may have cancelled this one
		s.mu.Lock()
		_, live := s.entries[e.handle]
		if live {
			e.due = now + e.period
		}
		s.mu.Unlock()
		if !live {
			continue
		}

		if err := runTask(e.task); err != nil {
			s.mu.Lock()
			s.failures = append(s.failures, TaskFailure{Handle: e.handle, Err: err})
			s.mu.Unlock()
		}
	}
}

// Now returns the number of ticks advanced so far
func (s *ManualScheduler) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Scheduled reports whether h is registered
func (s *ManualScheduler) Scheduled(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[h]
	return ok
}

// Active returns the number of live registrations
func (s *ManualScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Failures returns every task failure recorded so far
func (s *ManualScheduler) Failures() []TaskFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TaskFailure(nil), s.failures...)
}
