package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/logger"
)

const defaultFailureBuffer = 64

type registration struct {
	handle   Handle
	stopChan chan struct{}
	done     chan struct{}
}

// TickScheduler runs registrations on wall-clock ticks of a fixed interval.
// Runs of the same registration never overlap; separate registrations run
// concurrently.
type TickScheduler struct {
	interval      time.Duration
	registrations map[Handle]*registration
	nextHandle    Handle
	failures      chan TaskFailure
	mu            sync.Mutex
	stopped       bool
	log           zerolog.Logger
}

// NewTickScheduler creates a scheduler whose tick lasts interval.
// failureBuffer bounds how many unread failures are retained.
func NewTickScheduler(interval time.Duration, failureBuffer int) *TickScheduler {
	if failureBuffer < 0 {
		failureBuffer = defaultFailureBuffer
	}
	return &TickScheduler{
		interval:      interval,
		registrations: make(map[Handle]*registration),
		failures:      make(chan TaskFailure, failureBuffer),
		log:           logger.With("scheduler"),
	}
}

// Failures returns the channel task failures are reported on. Failures are
// dropped when nobody reads and the buffer is full; they are always logged.
func (s *TickScheduler) Failures() <-chan TaskFailure {
	return s.failures
}

// Schedule registers task with a start delay and period in ticks
func (s *TickScheduler) Schedule(task Task, delay, period int) (Handle, error) {
	if err := validate(task, delay, period); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrSchedulerStopped
	}

	s.nextHandle++
	reg := &registration{
		handle:   s.nextHandle,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.registrations[reg.handle] = reg

	go s.loop(reg, task, time.Duration(delay)*s.interval, time.Duration(period)*s.interval)

	s.log.Debug().
		Uint64("handle", uint64(reg.handle)).
		Int("delay_ticks", delay).
		Int("period_ticks", period).
		Msg("Task scheduled")

	return reg.handle, nil
}

// Cancel stops a registration. It does not wait for an in-flight run, so a
// task may cancel itself.
func (s *TickScheduler) Cancel(h Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[h]
	if !ok {
		return ErrNotScheduled
	}
	delete(s.registrations, h)
	close(reg.stopChan)

	s.log.Debug().Uint64("handle", uint64(h)).Msg("Task cancelled")
	return nil
}

// Active returns the number of live registrations
func (s *TickScheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.registrations)
}

// Stop cancels every registration and waits for their goroutines to exit
func (s *TickScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	regs := make([]*registration, 0, len(s.registrations))
	for h, reg := range s.registrations {
		close(reg.stopChan)
		delete(s.registrations, h)
		regs = append(regs, reg)
	}
	s.mu.Unlock()

	for _, reg := range regs {
		<-reg.done
	}

	s.log.Info().Int("cancelled_tasks", len(regs)).Msg("Scheduler stopped")
}

func (s *TickScheduler) loop(reg *registration, task Task, delay, period time.Duration) {
	defer close(reg.done)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-reg.stopChan:
			timer.Stop()
			return
		}
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		// A cancel that raced with the tick wins
		select {
		case <-reg.stopChan:
			return
		default:
		}

		s.run(reg.handle, task)

		select {
		case <-ticker.C:
		case <-reg.stopChan:
			return
		}
	}
}

func (s *TickScheduler) run(h Handle, task Task) {
	err := runTask(task)
	if err == nil {
		return
	}

	s.log.Error().
		Err(err).
		Uint64("handle", uint64(h)).
		Msg("Scheduled task failed")

	select {
	case s.failures <- TaskFailure{Handle: h, Err: err}:
	default:
	}
}
