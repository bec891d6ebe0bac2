// Package playback implements the tick-driven timeline playback engine.
//
// An Engine walks a cursor through a timeline one scheduled step at a time,
// parks on spike ticks, optionally loops, and on termination notifies
// listeners, starts its successor and relocates the movie audience exactly once.
package playback

import (
	"errors"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/notify"
	"github.com/stwalsh4118/cinema/internal/scheduler"
	"github.com/stwalsh4118/cinema/internal/world"
)

const (
	// DefaultWarmupTicks is the delay between Start and the first step
	DefaultWarmupTicks = 5

	// DefaultPeriodTicks is the number of ticks between steps
	DefaultPeriodTicks = 1
)

// Scheduler registers the engine's step as a recurring task
type Scheduler interface {
	Schedule(task scheduler.Task, delay, period int) (scheduler.Handle, error)
	Cancel(h scheduler.Handle) error
}

// Dispatcher marshals actions onto the main thread
type Dispatcher interface {
	Submit(action func())
}

// Publisher receives completion notifications
type Publisher interface {
	Publish(event notify.Event)
}

// Relocator moves audience members once a movie ends
type Relocator interface {
	Teleport(id uuid.UUID, loc world.Location) error
	SetMode(id uuid.UUID, mode world.Mode) error
}

// ErrInvalidRuntime is returned when a Runtime is missing a collaborator
var ErrInvalidRuntime = errors.New("playback runtime is missing a collaborator")

// Runtime bundles the collaborators shared by every engine
type Runtime struct {
	IDs        *IDAllocator
	Scheduler  Scheduler
	Dispatcher Dispatcher
	Notifier   Publisher
	World      Relocator

	// WarmupTicks and PeriodTicks both zero means the defaults
	WarmupTicks int
	PeriodTicks int
}

// Validate checks that every collaborator is set
func (rt Runtime) Validate() error {
	if rt.IDs == nil || rt.Scheduler == nil || rt.Dispatcher == nil || rt.Notifier == nil || rt.World == nil {
		return ErrInvalidRuntime
	}
	return nil
}

func (rt Runtime) timing() (warmup, period int) {
	if rt.WarmupTicks == 0 && rt.PeriodTicks == 0 {
		return DefaultWarmupTicks, DefaultPeriodTicks
	}
	period = rt.PeriodTicks
	if period < 1 {
		period = DefaultPeriodTicks
	}
	return rt.WarmupTicks, period
}
