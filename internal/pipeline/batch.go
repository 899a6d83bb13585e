package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/azint/internal/logging"
	"github.com/hupe1980/azint/internal/report"
)

// Summary collects the results of one batch pass in processing order.
type Summary struct {
	RunID    string
	Results  []Result
	Duration time.Duration
}

// Count returns the number of results with outcome o.
func (s *Summary) Count(o Outcome) int {
	n := 0

	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}

	return n
}

// Failures returns the failed results.
func (s *Summary) Failures() []Result {
	var out []Result

	for _, r := range s.Results {
		if r.Outcome == Failed {
			out = append(out, r)
		}
	}

	return out
}

// Table renders the summary as a table, empty when nothing was processed.
func (s *Summary) Table() string {
	rows := make([]report.Row, 0, len(s.Results))

	for _, r := range s.Results {
		row := report.Row{Image: r.Image}

		switch r.Outcome {
		case Converted:
			row.Kind = report.KindConverted
			row.Detail = filepath.Base(r.Pattern)
		case Skipped:
			row.Kind = report.KindSkipped
			row.Detail = r.Reason
		default:
			row.Kind = report.KindFailed
			row.Detail = r.Err.Error()
		}

		rows = append(rows, row)
	}

	return report.RenderSummary(rows)
}

// Batch converts every pending image of a directory in one pass.
type Batch struct {
	conv *Converter
}

// NewBatch returns a batch runner around conv.
func NewBatch(conv *Converter) *Batch {
	return &Batch{conv: conv}
}

// Scan lists the candidate images of sourceDir (non-recursive) sorted by
// name. Only regular files, or symlinks to them, are candidates.
func (b *Batch) Scan(sourceDir string) ([]string, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, err
	}

	// os.ReadDir already sorts by filename.
	var files []string

	for _, e := range entries {
		if !b.conv.Matches(e.Name()) {
			continue
		}

		path := filepath.Join(sourceDir, e.Name())
		if !isRegular(e, path) {
			continue
		}

		files = append(files, path)
	}

	return files, nil
}

func isRegular(e fs.DirEntry, path string) bool {
	if e.Type()&fs.ModeSymlink == 0 {
		return e.Type().IsRegular()
	}

	info, err := os.Stat(path)

	return err == nil && info.Mode().IsRegular()
}

// Run converts every candidate image in sourceDir sequentially. A failing
// file is recorded in the summary and does not stop the pass. Run returns
// an error only when sourceDir cannot be listed or ctx is cancelled; in the
// latter case the partial summary is returned as well.
func (b *Batch) Run(ctx context.Context, sourceDir string) (*Summary, error) {
	logger, runID := logging.WithRunID(logging.FromContext(ctx))
	ctx = logging.NewContext(ctx, logger)

	files, err := b.Scan(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("scanning source directory: %w", err)
	}

	logger.Info("batch started", slog.String("source", sourceDir), slog.Int("images", len(files)))

	start := time.Now()
	s := &Summary{RunID: runID, Results: make([]Result, 0, len(files))}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			s.Duration = time.Since(start)
			return s, err
		}

		s.Results = append(s.Results, b.conv.Convert(ctx, f))
	}

	s.Duration = time.Since(start)

	logger.Info("batch finished",
		slog.Int("converted", s.Count(Converted)),
		slog.Int("skipped", s.Count(Skipped)),
		slog.Int("failed", s.Count(Failed)),
		slog.Duration("duration", s.Duration),
	)

	return s, nil
}
