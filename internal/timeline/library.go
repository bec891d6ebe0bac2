package timeline

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrRecordingNotFound is returned when a recording name is not registered
	ErrRecordingNotFound = errors.New("recording not found")

	// ErrDuplicateRecording is returned when registering a name twice
	ErrDuplicateRecording = errors.New("recording already registered")

	// ErrUnnamedRecording is returned when registering a recording without a name
	ErrUnnamedRecording = errors.New("recording must have a name")
)

// IsRecordingNotFound checks if the error is a recording not found error
func IsRecordingNotFound(err error) bool {
	return errors.Is(err, ErrRecordingNotFound)
}

// RecordingInfo summarizes a registered recording
type RecordingInfo struct {
	Name         string `json:"name"`
	Tracks       int    `json:"tracks"`
	EndTick      int    `json:"end_tick"`
	LoopBackTick int    `json:"loop_back_tick"`
}

// Library holds decoded recordings by name
type Library struct {
	mu         sync.RWMutex
	recordings map[string]*Recording
}

// NewLibrary creates an empty library
func NewLibrary() *Library {
	return &Library{recordings: make(map[string]*Recording)}
}

// Register adds a recording
func (l *Library) Register(r *Recording) error {
	if r.Name() == "" {
		return ErrUnnamedRecording
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.recordings[r.Name()]; exists {
		return ErrDuplicateRecording
	}
	l.recordings[r.Name()] = r
	return nil
}

// Get returns a recording by name
func (l *Library) Get(name string) (*Recording, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	r, ok := l.recordings[name]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	return r, nil
}

// List returns every recording sorted by name
func (l *Library) List() []RecordingInfo {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]RecordingInfo, 0, len(l.recordings))
	for _, r := range l.recordings {
		out = append(out, RecordingInfo{
			Name:         r.Name(),
			Tracks:       len(r.tracks),
			EndTick:      MaxEndTick(r),
			LoopBackTick: r.LoopBackTick(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Put registers r, replacing any recording with the same name. Playbacks
// already running keep the recording they started with.
func (l *Library) Put(r *Recording) (replaced bool, err error) {
	if r.Name() == "" {
		return false, ErrUnnamedRecording
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, replaced = l.recordings[r.Name()]
	l.recordings[r.Name()] = r
	return replaced, nil
}

// Remove unregisters a recording and reports whether it was present
func (l *Library) Remove(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.recordings[name]; !ok {
		return false
	}
	delete(l.recordings, name)
	return true
}
