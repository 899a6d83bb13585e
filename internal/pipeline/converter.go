// Package pipeline implements the conversion of detector images into
// integrated pattern files, for a single file and for a whole directory.
//
// Completion is encoded purely on the filesystem: an image counts as
// converted once its pattern file exists in the destination directory. A
// [Converter] checks that marker before doing any work and publishes new
// patterns with an exclusive create, so a pattern path is written at most
// once no matter how often, or from how many call sites, an image is
// offered.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/azint/internal/imageio"
	"github.com/hupe1980/azint/internal/integrate"
	"github.com/hupe1980/azint/internal/logging"
	"github.com/hupe1980/azint/internal/output"
	"github.com/hupe1980/azint/internal/preview"
	"github.com/hupe1980/azint/internal/report"
)

// Skip reasons.
const (
	ReasonConverted  = "already converted"
	ReasonInProgress = "in progress"
)

// Outcome is the result kind of one conversion.
type Outcome int

// Conversion outcomes.
const (
	Converted Outcome = iota
	Skipped
	Failed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Converted:
		return "converted"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result describes what happened to one image.
type Result struct {
	Image   string
	Pattern string
	Outcome Outcome
	// Reason explains a Skipped outcome.
	Reason string
	// Err is set for Failed outcomes.
	Err error
	// Bytes is the size of the written pattern.
	Bytes int
}

// Options are the tunables shared by every conversion.
type Options struct {
	// Dest is the destination directory, created if absent.
	Dest          string
	ImageSuffix   string
	PatternSuffix string
	Integration   integrate.Options
	// MaskPath is recorded in pattern headers; the mask itself is passed
	// to NewConverter already decoded.
	MaskPath string
	// Preview also writes a PNG plot beside every new pattern.
	Preview bool
}

// Converter converts single images. The geometry (inside the integrator)
// and the mask are shared read-only by every call; Convert is safe for
// concurrent use.
type Converter struct {
	opts       Options
	mask       *mat.Dense
	reader     imageio.Reader
	integrator integrate.Integrator
	serialize  output.Serializer
	printer    *report.Printer

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Option configures a Converter.
type Option func(*Converter)

// WithReader overrides the image reader.
func WithReader(r imageio.Reader) Option {
	return func(c *Converter) {
		c.reader = r
	}
}

// WithSerializer overrides the pattern serializer chosen from the suffix.
func WithSerializer(s output.Serializer) Option {
	return func(c *Converter) {
		c.serialize = s
	}
}

// WithPrinter sets the status line printer.
func WithPrinter(p *report.Printer) Option {
	return func(c *Converter) {
		c.printer = p
	}
}

// NewConverter validates opts, creates the destination directory and
// returns a Converter. mask may be nil.
func NewConverter(opts Options, integrator integrate.Integrator, mask *mat.Dense, options ...Option) (*Converter, error) {
	if integrator == nil {
		return nil, errors.New("integrator must not be nil")
	}

	if opts.Dest == "" {
		return nil, errors.New("destination directory must not be empty")
	}

	if opts.ImageSuffix == "" || opts.PatternSuffix == "" || opts.ImageSuffix == opts.PatternSuffix {
		return nil, fmt.Errorf("invalid suffixes %q -> %q", opts.ImageSuffix, opts.PatternSuffix)
	}

	if err := os.MkdirAll(opts.Dest, 0o750); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	c := &Converter{
		opts:       opts,
		mask:       mask,
		reader:     imageio.FileReader{},
		integrator: integrator,
		serialize:  output.DefaultRegistry().ForSuffix(opts.PatternSuffix),
		printer:    report.NewPrinter(nil, true),
		inFlight:   make(map[string]struct{}),
	}

	for _, o := range options {
		o(c)
	}

	return c, nil
}

// Options returns the converter settings.
func (c *Converter) Options() Options { return c.opts }

// Matches reports whether path names a candidate image: it carries the image
// suffix and is not a hidden file.
func (c *Converter) Matches(path string) bool {
	base := filepath.Base(path)

	return strings.HasSuffix(base, c.opts.ImageSuffix) &&
		len(base) > len(c.opts.ImageSuffix) &&
		!strings.HasPrefix(base, ".")
}

// PatternPath derives the pattern path for an image.
func (c *Converter) PatternPath(imagePath string) string {
	base := strings.TrimSuffix(filepath.Base(imagePath), c.opts.ImageSuffix)

	return filepath.Join(c.opts.Dest, base+c.opts.PatternSuffix)
}

// Convert integrates imagePath into its pattern file unless the pattern
// already exists. Per-file errors are returned inside the Result, never
// panicked or propagated, and every call prints one status line.
func (c *Converter) Convert(ctx context.Context, imagePath string) Result {
	res := c.convert(ctx, imagePath)
	c.report(ctx, res)

	return res
}

func (c *Converter) convert(ctx context.Context, imagePath string) Result {
	res := Result{Image: imagePath}

	if !c.Matches(imagePath) {
		return failed(res, fmt.Errorf("%s: %w", imagePath, ErrSuffixMismatch))
	}

	if err := ctx.Err(); err != nil {
		return failed(res, err)
	}

	res.Pattern = c.PatternPath(imagePath)

	if exists(res.Pattern) {
		return skipped(res, ReasonConverted)
	}

	if !c.claim(res.Pattern) {
		return skipped(res, ReasonInProgress)
	}
	defer c.release(res.Pattern)

	// Another caller may have finished between the first check and the claim.
	if exists(res.Pattern) {
		return skipped(res, ReasonConverted)
	}

	data, pattern, err := c.render(imagePath)
	if err != nil {
		return failed(res, err)
	}

	w := output.NewFileWriter(res.Pattern, output.WithLogger(logging.FromContext(ctx)))
	if err := w.Write(data); err != nil {
		if errors.Is(err, output.ErrExists) {
			return skipped(res, ReasonConverted)
		}

		return failed(res, &WriteError{Pattern: res.Pattern, Err: err})
	}

	res.Outcome = Converted
	res.Bytes = len(data)

	if c.opts.Preview {
		c.writePreview(ctx, pattern, res.Pattern)
	}

	return res
}

// Render integrates imagePath and returns the serialized pattern without
// touching the destination directory.
func (c *Converter) Render(imagePath string) ([]byte, error) {
	data, _, err := c.render(imagePath)

	return data, err
}

func (c *Converter) render(imagePath string) ([]byte, *integrate.Pattern, error) {
	img, err := c.reader.Read(imagePath)
	if err != nil {
		return nil, nil, &DecodeError{Image: imagePath, Err: err}
	}

	pattern, err := c.runIntegrator(img)
	if err != nil {
		return nil, nil, &IntegrateError{Image: imagePath, Err: err}
	}

	data, err := c.serialize(pattern, output.Meta{Source: imagePath, Mask: c.opts.MaskPath})
	if err != nil {
		return nil, nil, &WriteError{Pattern: c.PatternPath(imagePath), Err: err}
	}

	return data, pattern, nil
}

// runIntegrator runs the integrator and turns a panic into an error so a single
// image cannot abort a batch pass.
func (c *Converter) runIntegrator(img *mat.Dense) (p *integrate.Pattern, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("integrator panicked: %v", r)
		}
	}()

	return c.integrator.Integrate(img, c.mask, c.opts.Integration)
}

// writePreview renders the PNG preview. Failures only produce a warning;
// the pattern is what marks the image as converted.
func (c *Converter) writePreview(ctx context.Context, p *integrate.Pattern, patternPath string) {
	logger := logging.FromContext(ctx)
	path := preview.PathFor(patternPath)

	data, err := preview.Render(p, strings.TrimSuffix(filepath.Base(patternPath), c.opts.PatternSuffix))
	if err == nil {
		err = output.NewFileWriter(path, output.WithLogger(logger)).Write(data)
	}

	if err != nil {
		logger.Warn("preview not written", slog.String("path", path), slog.String("error", err.Error()))
	}
}

func (c *Converter) report(ctx context.Context, res Result) {
	logger := logging.FromContext(ctx).With(slog.String("image", res.Image))

	switch res.Outcome {
	case Converted:
		logger.Info("pattern written", slog.String("pattern", res.Pattern), slog.Int("bytes", res.Bytes))
		c.printer.Converted(res.Image, res.Pattern, res.Bytes)
	case Skipped:
		logger.Debug("image skipped", slog.String("reason", res.Reason))
		c.printer.Skipped(res.Image, res.Reason)
	case Failed:
		logger.Warn("conversion failed", slog.String("error", res.Err.Error()))
		c.printer.Failed(res.Image, res.Err)
	}
}

// claim marks pattern as being produced. It returns false when another
// call already holds it.
func (c *Converter) claim(pattern string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, busy := c.inFlight[pattern]; busy {
		return false
	}

	c.inFlight[pattern] = struct{}{}

	return true
}

func (c *Converter) release(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, pattern)
}

func exists(path string) bool {
	_, err := os.Lstat(path)

	return err == nil
}

func failed(res Result, err error) Result {
	res.Outcome = Failed
	res.Err = err

	return res
}

func skipped(res Result, reason string) Result {
	res.Outcome = Skipped
	res.Reason = reason

	return res
}
