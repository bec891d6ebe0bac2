package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/cinema/internal/dispatch"
	"github.com/stwalsh4118/cinema/internal/recordings"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

// ErrValidationFailed is returned when at least one file is invalid
var ErrValidationFailed = errors.New("validation failed")

// FileResult is the outcome for one recording file
type FileResult struct {
	File      string `json:"file"`
	Valid     bool   `json:"valid"`
	Recording string `json:"recording,omitempty"`
	Tracks    int    `json:"tracks,omitempty"`
	EndTick   int    `json:"end_tick,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file-or-dir>...",
		Short: "Check recording files without starting the server",
		Long: `Parse recording files and report their end tick and track count.

Directories are expanded to the recording files directly inside them.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd.OutOrStdout())
		},
	}
}

func runValidate(opts *RootOptions, args []string, out io.Writer) error {
	files, err := expandPaths(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no recording files found")
	}

	// tracks are built against a scratch world and never played
	w := world.New()
	results := make([]FileResult, 0, len(files))
	failed := false
	for _, path := range files {
		res := FileResult{File: path}
		rec, err := recordings.LoadFile(path, w, dispatch.Inline{})
		if err != nil {
			res.Error = err.Error()
			failed = true
		} else {
			res.Valid = true
			res.Recording = rec.Name()
			res.Tracks = len(rec.Tracks())
			res.EndTick = timeline.MaxEndTick(rec)
		}
		results = append(results, res)
	}

	if err := writeResults(opts, out, results); err != nil {
		return err
	}
	if failed {
		return ErrValidationFailed
	}
	return nil
}

func expandPaths(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		for _, entry := range entries {
			if !entry.IsDir() && recordings.IsRecordingFile(entry.Name()) {
				files = append(files, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return files, nil
}

func writeResults(opts *RootOptions, out io.Writer, results []FileResult) error {
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for _, r := range results {
		if !r.Valid {
			fmt.Fprintf(out, "FAIL %s: %s\n", r.File, r.Error)
			continue
		}
		if opts.Verbose {
			fmt.Fprintf(out, "ok   %s (%s, %d tracks, end tick %d)\n", r.File, r.Recording, r.Tracks, r.EndTick)
		} else {
			fmt.Fprintf(out, "ok   %s\n", r.File)
		}
	}
	return nil
}
