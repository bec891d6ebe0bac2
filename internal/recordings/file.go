// Package recordings loads recordings from YAML files and keeps a library in
// sync with a directory of them.
package recordings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoTracks is returned for a recording file without actors or camera
	ErrNoTracks = errors.New("recording has no tracks")

	// ErrNoKeyframes is returned for a track without keyframes
	ErrNoKeyframes = errors.New("track has no keyframes")
)

// File is the on-disk form of a recording
type File struct {
	// Name defaults to the file name without its extension
	Name         string              `yaml:"name"`
	LoopBackTick int                 `yaml:"loop_back_tick"`
	Actors       []Actor             `yaml:"actors"`
	Camera       []timeline.Keyframe `yaml:"camera"`
}

// Actor is one recorded stand-in
type Actor struct {
	Name      string              `yaml:"name"`
	Keyframes []timeline.Keyframe `yaml:"keyframes"`
}

// IsRecordingFile reports whether path has a recording file extension
func IsRecordingFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// NameFromPath returns the default recording name for a file
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Decode parses a recording file. Unknown fields are rejected.
func Decode(r io.Reader) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid recording: %w", err)
	}
	return &f, nil
}

// LoadFile reads a recording file and builds its recording. Tracks touch w,
// and the camera track does so through d.
func LoadFile(path string, w *world.World, d timeline.Dispatcher) (*timeline.Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recording file: %w", err)
	}

	f, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if f.Name == "" {
		f.Name = NameFromPath(path)
	}
	return f.Build(w, d), nil
}

// Build turns the file into a playable recording
func (f *File) Build(w *world.World, d timeline.Dispatcher) *timeline.Recording {
	tracks := make([]timeline.Track, 0, len(f.Actors)+1)
	for _, a := range f.Actors {
		tracks = append(tracks, timeline.NewActorTrack(a.Name, w, a.Keyframes))
	}
	if len(f.Camera) > 0 {
		tracks = append(tracks, timeline.NewCameraTrack(w, d, f.Camera))
	}
	return timeline.NewRecording(f.Name, f.LoopBackTick, tracks...)
}

func (f *File) validate() error {
	if len(f.Actors) == 0 && len(f.Camera) == 0 {
		return ErrNoTracks
	}
	if f.LoopBackTick < 0 {
		return fmt.Errorf("loop_back_tick %d must be >= 0", f.LoopBackTick)
	}
	for i, a := range f.Actors {
		if a.Name == "" {
			return fmt.Errorf("actor %d: name is required", i)
		}
		if len(a.Keyframes) == 0 {
			return fmt.Errorf("actor %s: %w", a.Name, ErrNoKeyframes)
		}
		if err := validateTicks(a.Keyframes); err != nil {
			return fmt.Errorf("actor %s: %w", a.Name, err)
		}
	}
	if err := validateTicks(f.Camera); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	return nil
}

func validateTicks(frames []timeline.Keyframe) error {
	for _, k := range frames {
		if k.Tick < 0 {
			return fmt.Errorf("keyframe tick %d must be >= 0", k.Tick)
		}
	}
	return nil
}
