// Package scheduler drives recurring tasks on a fixed tick cadence.
//
// Delays and periods are expressed in ticks. TickScheduler maps ticks onto wall
// clock time and runs every registration on its own goroutine; ManualScheduler
// advances ticks only when told to and is used to drive playbacks deterministically.
package scheduler

import (
	"errors"
	"fmt"
)

// Task is one recurring unit of work. A returned error is reported on the
// scheduler's failure channel; the task stays scheduled.
type Task func() error

// Handle identifies a registration. The zero Handle is never issued.
type Handle uint64

// Scheduler registers recurring tasks and cancels them
type Scheduler interface {
	// Schedule runs task after delay ticks and then every period ticks
	Schedule(task Task, delay, period int) (Handle, error)

	// Cancel stops a registration. It returns ErrNotScheduled if the handle is
	// not (or no longer) registered.
	Cancel(h Handle) error
}

var (
	// ErrNotScheduled is the illegal-state error returned when cancelling a
	// registration that does not exist or was already cancelled
	ErrNotScheduled = errors.New("task is not scheduled")

	// ErrSchedulerStopped is returned by Schedule after Stop
	ErrSchedulerStopped = errors.New("scheduler has been stopped")

	// ErrInvalidPeriod is returned for periods below one tick
	ErrInvalidPeriod = errors.New("period must be at least one tick")

	// ErrNilTask is returned when scheduling a nil task
	ErrNilTask = errors.New("task must not be nil")
)

// IsNotScheduled reports whether err is the not-scheduled illegal-state error
func IsNotScheduled(err error) bool {
	return errors.Is(err, ErrNotScheduled)
}

// TaskFailure describes one failed task run
type TaskFailure struct {
	Handle Handle
	Err    error
}

// validate checks Schedule arguments shared by all implementations
func validate(task Task, delay, period int) error {
	if task == nil {
		return ErrNilTask
	}
	if period < 1 {
		return ErrInvalidPeriod
	}
	if delay < 0 {
		return fmt.Errorf("invalid delay %d: must be >= 0", delay)
	}
	return nil
}

// runTask runs task and converts a panic into an error
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task()
}
