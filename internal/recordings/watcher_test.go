package recordings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cinema/internal/dispatch"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

func writeRecording(t *testing.T, dir, file, body string) string {
	t.Helper()
	path := filepath.Join(dir, file)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func newTestWatcher(t *testing.T, dir string, lib *timeline.Library) *Watcher {
	t.Helper()
	rw, err := NewWatcher(dir, lib, world.New(), dispatch.Inline{}, 10*time.Millisecond)
	require.NoError(t, err)
	return rw
}

func TestNewWatcher_Validation(t *testing.T) {
	lib := timeline.NewLibrary()

	_, err := NewWatcher("", lib, nil, nil, 0)
	assert.Error(t, err)

	_, err = NewWatcher(t.TempDir(), nil, nil, nil, 0)
	assert.Error(t, err)

	_, err = NewWatcher(t.TempDir(), lib, nil, nil, -time.Second)
	assert.Error(t, err)

	// creates the directory
	dir := filepath.Join(t.TempDir(), "nested", "recordings")
	_, err = NewWatcher(dir, lib, nil, nil, 0)
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestWatcher_ScanLoadsChangesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	lib := timeline.NewLibrary()
	rw := newTestWatcher(t, dir, lib)

	writeRecording(t, dir, "walk.yaml", walkYAML)
	path := writeRecording(t, dir, "pan.yaml", "camera:\n  - tick: 4\n")
	writeRecording(t, dir, "broken.yaml", "actors: [\n")
	writeRecording(t, dir, "notes.txt", "ignored")

	rw.scan()
	assert.Equal(t, 2, rw.Loaded())
	assert.Len(t, lib.List(), 2)

	rec, err := lib.Get("pan")
	require.NoError(t, err)
	assert.Equal(t, 4, timeline.MaxEndTick(rec))

	// rewrite with a later mod time
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  - tick: 9\n"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	rw.scan()

	rec, err = lib.Get("pan")
	require.NoError(t, err)
	assert.Equal(t, 9, timeline.MaxEndTick(rec))

	require.NoError(t, os.Remove(path))
	rw.scan()
	_, err = lib.Get("pan")
	assert.True(t, timeline.IsRecordingNotFound(err))
	assert.Equal(t, 1, rw.Loaded())
}

func TestWatcher_RenamedRecordingDropsOldName(t *testing.T) {
	dir := t.TempDir()
	lib := timeline.NewLibrary()
	rw := newTestWatcher(t, dir, lib)

	path := writeRecording(t, dir, "scene.yaml", "name: first\ncamera:\n  - tick: 1\n")
	rw.load(path)
	_, err := lib.Get("first")
	require.NoError(t, err)

	writeRecording(t, dir, "scene.yaml", "name: second\ncamera:\n  - tick: 1\n")
	rw.load(path)

	_, err = lib.Get("first")
	assert.True(t, timeline.IsRecordingNotFound(err))
	_, err = lib.Get("second")
	assert.NoError(t, err)
}

func TestWatcher_FailedReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	lib := timeline.NewLibrary()
	rw := newTestWatcher(t, dir, lib)

	path := writeRecording(t, dir, "pan.yaml", "camera:\n  - tick: 4\n")
	rw.load(path)

	writeRecording(t, dir, "pan.yaml", "camera: [\n")
	rw.load(path)

	rec, err := lib.Get("pan")
	require.NoError(t, err)
	assert.Equal(t, 4, timeline.MaxEndTick(rec))
}

func TestWatcher_PicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	lib := timeline.NewLibrary()
	writeRecording(t, dir, "walk.yaml", walkYAML)

	rw := newTestWatcher(t, dir, lib)
	require.NoError(t, rw.Start())
	defer rw.Stop()

	// initial scan is synchronous
	_, err := lib.Get("walk")
	require.NoError(t, err)
	assert.Error(t, rw.Start())

	writeRecording(t, dir, "pan.yaml", "camera:\n  - tick: 4\n")
	assert.Eventually(t, func() bool {
		_, err := lib.Get("pan")
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "walk.yaml")))
	assert.Eventually(t, func() bool {
		_, err := lib.Get("walk")
		return timeline.IsRecordingNotFound(err)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	rw := newTestWatcher(t, t.TempDir(), timeline.NewLibrary())
	require.NoError(t, rw.Start())
	rw.Stop()
	rw.Stop()
	assert.Error(t, rw.Start())

	// never started
	idle := newTestWatcher(t, t.TempDir(), timeline.NewLibrary())
	idle.Stop()
}
