// Package dispatch marshals world-mutating actions onto the single goroutine
// that is allowed to change shared world state.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/logger"
)

// ErrDispatcherStopped is returned by TrySubmit once the dispatcher has shut down
var ErrDispatcherStopped = errors.New("dispatcher has been stopped")

// MainThread runs submitted actions one at a time, in submission order, on its own goroutine
type MainThread struct {
	queue    chan func()
	stopChan chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	started  bool
	stopped  bool
	log      zerolog.Logger
}

// NewMainThread creates a dispatcher with room for queueSize pending actions
func NewMainThread(queueSize int) *MainThread {
	if queueSize < 1 {
		queueSize = 1
	}
	return &MainThread{
		queue:    make(chan func(), queueSize),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
		log:      logger.With("dispatch"),
	}
}

// Start launches the main-thread goroutine
func (d *MainThread) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.stopped {
		return
	}
	d.started = true
	go d.run()
}

// Stop drains already queued actions, then stops the goroutine
func (d *MainThread) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	started := d.started
	d.mu.Unlock()

	close(d.stopChan)
	if started {
		<-d.done
	}
}

// Submit queues an action. Actions submitted after Stop are dropped.
func (d *MainThread) Submit(action func()) {
	if err := d.TrySubmit(action); err != nil {
		d.log.Warn().Err(err).Msg("Dropping main-thread action")
	}
}

// TrySubmit queues an action, blocking while the queue is full
func (d *MainThread) TrySubmit(action func()) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- action:
		return nil
	case <-d.stopChan:
		return ErrDispatcherStopped
	}
}

func (d *MainThread) run() {
	defer close(d.done)

	for {
		select {
		case action := <-d.queue:
			d.execute(action)
		case <-d.stopChan:
			for {
				select {
				case action := <-d.queue:
					d.execute(action)
				default:
					return
				}
			}
		}
	}
}

func (d *MainThread) execute(action func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Msg("Main-thread action panicked")
		}
	}()
	action()
}

// Inline runs every action immediately on the caller's goroutine.
// Useful where the caller already is the main thread, and in tests.
type Inline struct{}

// Submit runs action synchronously
func (Inline) Submit(action func()) {
	action()
}
