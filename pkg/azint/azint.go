// Package azint provides a public Go API for converting X-ray detector images
// into azimuthally integrated 1D patterns.
//
// This package exposes the azint conversion pipeline as a library, allowing
// programmatic use without the CLI.
//
// Basic usage:
//
//	p, err := azint.New("detector.poni", "processed")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, err := p.Batch(ctx, "raw")
//
// With options:
//
//	p, err := azint.New("detector.poni", "processed",
//	    azint.WithMask("mask.tif"),
//	    azint.WithBins(2000),
//	    azint.WithUnit("2th_deg"),
//	)
//	err = p.Watch(ctx, "raw") // blocks until ctx is cancelled
package azint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/azint/internal/calibration"
	"github.com/hupe1980/azint/internal/config"
	"github.com/hupe1980/azint/internal/imageio"
	"github.com/hupe1980/azint/internal/integrate"
	"github.com/hupe1980/azint/internal/logging"
	"github.com/hupe1980/azint/internal/pipeline"
	"github.com/hupe1980/azint/internal/report"
	"github.com/hupe1980/azint/internal/watch"
)

// Option configures a Processor.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	mask          string
	imageSuffix   string
	patternSuffix string
	bins          int
	polarization  float64
	unit          string
	settle        time.Duration
	preview       bool
	logger        *slog.Logger
	status        io.Writer
}

// WithMask excludes the non-zero pixels of the mask image at path.
func WithMask(path string) Option { return func(o *options) { o.mask = path } }

// WithImageSuffix sets the suffix identifying detector images (default ".tif").
func WithImageSuffix(s string) Option { return func(o *options) { o.imageSuffix = s } }

// WithPatternSuffix sets the suffix of pattern files (default ".dat").
func WithPatternSuffix(s string) Option { return func(o *options) { o.patternSuffix = s } }

// WithBins sets the number of radial bins (default 1000).
func WithBins(n int) Option { return func(o *options) { o.bins = n } }

// WithPolarization sets the polarization factor (default 0.95).
func WithPolarization(f float64) Option { return func(o *options) { o.polarization = f } }

// WithUnit sets the radial unit: q_nm^-1, q_A^-1 (default), 2th_deg or 2th_rad.
func WithUnit(u string) Option { return func(o *options) { o.unit = u } }

// WithSettle delays live conversion until an image saw no writes for d.
func WithSettle(d time.Duration) Option { return func(o *options) { o.settle = d } }

// WithPreview also writes a PNG plot beside every pattern.
func WithPreview() Option { return func(o *options) { o.preview = true } }

// WithLogger sets the structured logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithStatusOutput writes one human-readable status line per image to w.
func WithStatusOutput(w io.Writer) Option { return func(o *options) { o.status = w } }

// Outcome is the result kind of one conversion.
type Outcome string

// Conversion outcomes.
const (
	Converted Outcome = "converted"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// Result describes what happened to one image.
type Result struct {
	Image   string
	Pattern string
	Outcome Outcome
	// Reason explains a Skipped outcome.
	Reason string
	// Err is set for Failed outcomes.
	Err error
}

// Processor converts images with a fixed calibration, mask and destination.
// It is safe for concurrent use.
type Processor struct {
	conv   *pipeline.Converter
	logger *slog.Logger
	settle time.Duration
}

// New loads the calibration and mask and prepares the destination directory.
func New(calibrationPath, dest string, opts ...Option) (*Processor, error) {
	o := options{
		imageSuffix:   config.DefaultImageSuffix,
		patternSuffix: config.DefaultPatternSuffix,
		bins:          config.DefaultBins,
		polarization:  config.DefaultPolarization,
		unit:          config.DefaultUnit,
		logger:        logging.Discard(),
	}

	for _, fn := range opts {
		fn(&o)
	}

	settings := config.Pipeline{
		Dest:          dest,
		Calibration:   calibrationPath,
		Mask:          o.mask,
		ImageSuffix:   o.imageSuffix,
		PatternSuffix: o.patternSuffix,
		Bins:          o.bins,
		Polarization:  o.polarization,
		Unit:          o.unit,
		Settle:        o.settle,
		Preview:       o.preview,
	}
	if err := settings.Validate(false); err != nil {
		return nil, err
	}

	geometry, err := calibration.Load(calibrationPath)
	if err != nil {
		return nil, err
	}

	mask, err := imageio.LoadMask(imageio.FileReader{}, o.mask)
	if err != nil {
		return nil, err
	}

	unit, err := integrate.ParseUnit(o.unit)
	if err != nil {
		return nil, err
	}

	conv, err := pipeline.NewConverter(pipeline.Options{
		Dest:          dest,
		ImageSuffix:   o.imageSuffix,
		PatternSuffix: o.patternSuffix,
		Integration:   integrate.Options{Bins: o.bins, Polarization: o.polarization, Unit: unit},
		MaskPath:      o.mask,
		Preview:       o.preview,
	}, integrate.NewAzimuthal(geometry), mask, pipeline.WithPrinter(report.NewPrinter(o.status, true)))
	if err != nil {
		return nil, err
	}

	return &Processor{conv: conv, logger: o.logger, settle: o.settle}, nil
}

// Convert converts a single image unless its pattern already exists.
func (p *Processor) Convert(ctx context.Context, image string) Result {
	return toResult(p.conv.Convert(p.context(ctx), image))
}

// Batch converts every pending image of sourceDir once, in name order.
func (p *Processor) Batch(ctx context.Context, sourceDir string) ([]Result, error) {
	summary, err := pipeline.NewBatch(p.conv).Run(p.context(ctx), sourceDir)
	if summary == nil {
		return nil, err
	}

	results := make([]Result, 0, len(summary.Results))
	for _, r := range summary.Results {
		results = append(results, toResult(r))
	}

	return results, err
}

// Watch converts every image created in sourceDir until ctx is cancelled.
// Existing images are not touched; call Batch first to pick them up.
func (p *Processor) Watch(ctx context.Context, sourceDir string) error {
	ctx = p.context(ctx)

	w, err := watch.New(watch.Options{
		Dir:    sourceDir,
		Match:  p.conv.Matches,
		Settle: p.settle,
	}, func(ctx context.Context, path string) {
		p.conv.Convert(ctx, path)
	})
	if err != nil {
		return err
	}

	if err := w.Run(ctx); err != nil {
		return fmt.Errorf("watching %s: %w", sourceDir, err)
	}

	return nil
}

func (p *Processor) context(ctx context.Context) context.Context {
	return logging.NewContext(ctx, p.logger)
}

func toResult(r pipeline.Result) Result {
	return Result{
		Image:   r.Image,
		Pattern: r.Pattern,
		Outcome: Outcome(r.Outcome.String()),
		Reason:  r.Reason,
		Err:     r.Err,
	}
}
