// Package notify publishes playback completion events to registered subscribers.
package notify

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/models"
)

var (
	// ErrSubscriberExists is returned when subscribing an id twice
	ErrSubscriberExists = errors.New("subscriber already exists")

	// ErrSubscriberNotFound is returned when unsubscribing an unknown id
	ErrSubscriberNotFound = errors.New("subscriber not found")

	// ErrNilHandler is returned when subscribing a nil handler
	ErrNilHandler = errors.New("handler must not be nil")
)

// Event is something a playback announces
type Event interface {
	Kind() string
}

// SceneFinished is published once when a playback engine terminates
type SceneFinished struct {
	PlayerID int
}

// Kind implements Event
func (SceneFinished) Kind() string { return "scene_finished" }

// MovieFinished is published once when the engine carrying a movie terminates
type MovieFinished struct {
	PlayID int
	Movie  *models.Movie
}

// Kind implements Event
func (MovieFinished) Kind() string { return "movie_finished" }

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(Event)

// Sink is a publish/subscribe registry
type Sink struct {
	mu             sync.RWMutex
	subscribers    map[string]Handler
	totalPublished uint64
	log            zerolog.Logger
}

// NewSink creates an empty registry
func NewSink() *Sink {
	return &Sink{
		subscribers: make(map[string]Handler),
		log:         logger.With("notify"),
	}
}

// Subscribe registers handler under id
func (s *Sink) Subscribe(id string, handler Handler) error {
	if handler == nil {
		return ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	s.subscribers[id] = handler
	return nil
}

// Unsubscribe removes a handler
func (s *Sink) Unsubscribe(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(s.subscribers, id)
	return nil
}

// Publish delivers event to every subscriber in id order. A panicking handler
// is logged and does not stop delivery to the others.
func (s *Sink) Publish(event Event) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.subscribers))
	for id := range s.subscribers {
		ids = append(ids, id)
	}
	handlers := make([]Handler, 0, len(ids))
	sort.Strings(ids)
	for _, id := range ids {
		handlers = append(handlers, s.subscribers[id])
	}
	s.mu.RUnlock()

	atomic.AddUint64(&s.totalPublished, 1)

	for i, h := range handlers {
		s.deliver(ids[i], h, event)
	}
}

// TotalPublished returns the number of events published so far
func (s *Sink) TotalPublished() uint64 {
	return atomic.LoadUint64(&s.totalPublished)
}

func (s *Sink) deliver(id string, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Str("subscriber", id).
				Str("event", event.Kind()).
				Msg("Subscriber panicked")
		}
	}()
	h(event)
}
