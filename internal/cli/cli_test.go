package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pan.yaml", "camera:\n  - tick: 0\n  - tick: 12\n")
	writeFile(t, dir, "readme.md", "not a recording")

	out, err := execute(t, "validate", "-v", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "ok   ")
	assert.Contains(t, out, "(pan, 1 tracks, end tick 12)")
	assert.NotContains(t, out, "readme")
}

func TestValidate_ReportsInvalidFilesAsJSON(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yaml", "name: hello\nactors:\n  - name: a\n    keyframes:\n      - tick: 3\n")
	bad := writeFile(t, dir, "bad.yaml", "name: nothing\n")

	out, err := execute(t, "validate", "--format", "json", good, bad)
	assert.ErrorIs(t, err, ErrValidationFailed)

	var results []FileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.True(t, results[0].Valid)
	assert.Equal(t, "hello", results[0].Recording)
	assert.Equal(t, 3, results[0].EndTick)
	assert.False(t, results[1].Valid)
	assert.Contains(t, results[1].Error, "no tracks")
}

func TestValidate_Errors(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)

	_, err = execute(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = execute(t, "validate", t.TempDir())
	assert.ErrorContains(t, err, "no recording files")

	_, err = execute(t, "--format", "xml", "validate", t.TempDir())
	assert.ErrorContains(t, err, "invalid format")
}

func TestMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "cinema.db")

	out, err := execute(t, "migrate", "--db", dbPath, "--migrations", "file://../../migrations")
	require.NoError(t, err)
	assert.Contains(t, out, "migrated "+dbPath)
	assert.FileExists(t, dbPath)

	// already up to date
	_, err = execute(t, "migrate", "--db", dbPath, "--migrations", "file://../../migrations")
	require.NoError(t, err)
}
