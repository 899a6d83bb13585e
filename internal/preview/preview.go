// Package preview renders integrated patterns as PNG line plots for quick
// inspection at the beamline.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/hupe1980/azint/internal/integrate"
)

// Suffix is appended to the pattern base name for preview files.
const Suffix = ".png"

// Render draws p and returns the PNG bytes.
func Render(p *integrate.Pattern, title string) ([]byte, error) {
	if p == nil || p.Len() == 0 {
		return nil, errors.New("nothing to plot")
	}

	pts := make(plotter.XYs, p.Len())
	for k := range pts {
		pts[k].X = p.Radial[k]
		pts[k].Y = p.Intensity[k]
	}

	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = string(p.Unit)
	plt.Y.Label.Text = "I"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("building line: %w", err)
	}

	plt.Add(line)

	wt, err := plt.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return nil, fmt.Errorf("creating png canvas: %w", err)
	}

	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}

	return buf.Bytes(), nil
}

// PathFor returns the preview path belonging to a pattern path.
func PathFor(patternPath string) string {
	ext := filepath.Ext(patternPath)

	return patternPath[:len(patternPath)-len(ext)] + Suffix
}
