package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/azint/internal/calibration"
	"github.com/hupe1980/azint/internal/config"
	"github.com/hupe1980/azint/internal/imageio"
	"github.com/hupe1980/azint/internal/integrate"
	"github.com/hupe1980/azint/internal/logging"
	"github.com/hupe1980/azint/internal/pipeline"
	"github.com/hupe1980/azint/internal/report"
)

// session holds what every conversion command builds before touching any
// image: validated settings, the calibration, the mask and the converter.
type session struct {
	cfg      *config.Config
	geometry *calibration.Geometry
	conv     *pipeline.Converter
	printer  *report.Printer
	out      io.Writer
}

// newSession validates the settings and loads calibration and mask.
// Configuration problems are returned as exit code 2.
func newSession(cmd *cobra.Command, needSource bool) (*session, error) {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	if err := cfg.Pipeline.Validate(needSource); err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	if needSource {
		if err := checkSourceDir(cfg.Source); err != nil {
			return nil, &ExitError{Code: 2, Err: err}
		}
	}

	geometry, err := calibration.Load(cfg.Calibration)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	mask, err := imageio.LoadMask(imageio.FileReader{}, cfg.Mask)
	if err != nil {
		return nil, &ExitError{Code: 2, Err: err}
	}

	// Validate already parsed the unit.
	unit, _ := integrate.ParseUnit(cfg.Unit)

	out := cmd.OutOrStdout()
	if cfg.Quiet {
		out = io.Discard
	}

	printer := report.NewPrinter(out, cfg.NoColor)

	conv, err := pipeline.NewConverter(pipeline.Options{
		Dest:          cfg.Dest,
		ImageSuffix:   cfg.ImageSuffix,
		PatternSuffix: cfg.PatternSuffix,
		Integration: integrate.Options{
			Bins:         cfg.Bins,
			Polarization: cfg.Polarization,
			Unit:         unit,
		},
		MaskPath: cfg.Mask,
		Preview:  cfg.Preview,
	}, integrate.NewAzimuthal(geometry), mask, pipeline.WithPrinter(printer))
	if err != nil {
		return nil, &ExitError{Code: 1, Err: err}
	}

	logger.Debug("calibration loaded",
		slog.String("path", cfg.Calibration),
		slog.String("geometry", geometry.String()),
		slog.Bool("mask", mask != nil),
	)

	return &session{cfg: cfg, geometry: geometry, conv: conv, printer: printer, out: out}, nil
}

// lockDestination takes the cross-process lock on the destination.
func (s *session) lockDestination() (*pipeline.DestinationLock, error) {
	lock, err := pipeline.LockDestination(s.cfg.Dest)
	if err != nil {
		return nil, &ExitError{Code: 1, Err: err}
	}

	return lock, nil
}

// runBatch performs one batch pass over the source directory and prints
// the summary table.
func (s *session) runBatch(ctx context.Context) (*pipeline.Summary, error) {
	summary, err := pipeline.NewBatch(s.conv).Run(ctx, s.cfg.Source)
	if summary != nil {
		if table := summary.Table(); table != "" {
			fmt.Fprintln(s.out, table)
		}
	}

	if err != nil {
		return summary, &ExitError{Code: 1, Err: err}
	}

	return summary, nil
}

func checkSourceDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("source directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", dir)
	}

	return nil
}
