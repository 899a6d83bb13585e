// Package integrate reduces 2D detector images to 1D diffraction patterns
// by azimuthal integration.
//
// Every pixel is assigned the scattering angle of its centre (no pixel
// splitting), corrected for beam polarization and solid angle, and binned
// along the radial axis. The intensity of a bin is the summed raw signal
// divided by the summed correction of the pixels that fell into it.
package integrate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/azint/internal/calibration"
)

// ErrNoPixels is returned when masking leaves nothing to integrate.
var ErrNoPixels = errors.New("no unmasked pixels to integrate")

// Options are the fixed integration parameters applied to every image.
type Options struct {
	// Bins is the number of radial points.
	Bins int
	// Polarization is the polarization factor; 0 means unpolarized.
	Polarization float64
	// Unit is the radial unit of the result.
	Unit Unit
}

// Pattern is an integrated 1D profile.
type Pattern struct {
	Radial    []float64
	Intensity []float64
	// Count is the number of pixels that contributed to each bin.
	Count []float64

	Unit         Unit
	Polarization float64
	MaskedPixels int
	Geometry     calibration.Geometry
}

// Len returns the number of bins.
func (p *Pattern) Len() int { return len(p.Radial) }

// Integrator turns an image into a pattern. mask may be nil.
type Integrator interface {
	Integrate(img, mask *mat.Dense, opts Options) (*Pattern, error)
}

// Azimuthal integrates against a fixed detector geometry. It holds no
// mutable state and is safe for concurrent use.
type Azimuthal struct {
	geom calibration.Geometry
}

var _ Integrator = (*Azimuthal)(nil)

// NewAzimuthal returns an integrator for geom.
func NewAzimuthal(geom *calibration.Geometry) *Azimuthal {
	return &Azimuthal{geom: *geom}
}

// Integrate implements Integrator.
func (a *Azimuthal) Integrate(img, mask *mat.Dense, opts Options) (*Pattern, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}

	if opts.Bins < 2 {
		return nil, fmt.Errorf("invalid bin count %d", opts.Bins)
	}

	rows, cols := img.Dims()

	if mask != nil {
		mr, mc := mask.Dims()
		if mr != rows || mc != cols {
			return nil, fmt.Errorf("mask shape %dx%d does not match image shape %dx%d", mr, mc, rows, cols)
		}
	}

	g := a.geom
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	c1, s1 := math.Cos(g.Rot1), math.Sin(g.Rot1)
	c2, s2 := math.Cos(g.Rot2), math.Sin(g.Rot2)
	c3, s3 := math.Cos(g.Rot3), math.Sin(g.Rot3)
	dist := g.Distance

	n := rows * cols
	radial := make([]float64, 0, n)
	signal := make([]float64, 0, n)
	norm := make([]float64, 0, n)
	masked := 0

	for i := 0; i < rows; i++ {
		p1 := (float64(i)+0.5)*g.PixelSize1 - g.Poni1

		for j := 0; j < cols; j++ {
			if mask != nil && mask.At(i, j) != 0 {
				masked++
				continue
			}

			v := img.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}

			p2 := (float64(j)+0.5)*g.PixelSize2 - g.Poni2

			t1 := p1*c2*c3 + p2*(c3*s1*s2-c1*s3) - dist*(c1*c3*s2+s1*s3)
			t2 := p1*c2*s3 + p2*(c1*c3+s1*s2*s3) - dist*(-c3*s1+c1*s2*s3)
			t3 := p1*s2 - p2*c2*s1 + dist*c1*c2

			tth := math.Atan2(math.Hypot(t1, t2), t3)
			chi := math.Atan2(t1, t2)

			x := opts.Unit.FromTwoTheta(tth, g.Wavelength)
			w := polarization(tth, chi, opts.Polarization) * solidAngle(dist, p1, p2)

			if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(w) || math.IsInf(w, 0) {
				continue
			}

			radial = append(radial, x)
			signal = append(signal, v)
			norm = append(norm, w)
		}
	}

	if len(radial) == 0 {
		return nil, ErrNoPixels
	}

	p := histogram(radial, signal, norm, opts.Bins)
	p.Unit = opts.Unit
	p.Polarization = opts.Polarization
	p.MaskedPixels = masked
	p.Geometry = g

	return p, nil
}

// polarization returns the polarization correction for a pixel at
// scattering angle tth and azimuth chi.
func polarization(tth, chi, factor float64) float64 {
	cos2tth := math.Cos(tth) * math.Cos(tth)

	return 0.5 * (1 + cos2tth - factor*math.Cos(2*chi)*(1-cos2tth))
}

// solidAngle returns the solid angle of a pixel at detector-frame offset
// (p1, p2) from the PONI, relative to the pixel at the PONI. It depends on
// the angle to the detector normal, not on the detector tilt.
func solidAngle(dist, p1, p2 float64) float64 {
	cos := dist / math.Sqrt(dist*dist+p1*p1+p2*p2)

	return cos * cos * cos
}

// histogram bins signal and norm over equal-width radial bins spanning the
// observed range. radial is sorted in place.
func histogram(radial, signal, norm []float64, bins int) *Pattern {
	n := len(radial)
	inds := make([]int, n)
	floats.Argsort(radial, inds)

	sig := make([]float64, n)
	nrm := make([]float64, n)

	for k, idx := range inds {
		sig[k] = signal[idx]
		nrm[k] = norm[idx]
	}

	lo := radial[0]
	hi := math.Nextafter(radial[n-1], math.Inf(1))

	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = hi // Histogram requires every value below the last divider.

	sums := stat.Histogram(make([]float64, bins), dividers, radial, sig)
	norms := stat.Histogram(make([]float64, bins), dividers, radial, nrm)
	counts := stat.Histogram(make([]float64, bins), dividers, radial, nil)

	p := &Pattern{
		Radial:    make([]float64, bins),
		Intensity: make([]float64, bins),
		Count:     counts,
	}

	for k := 0; k < bins; k++ {
		p.Radial[k] = (dividers[k] + dividers[k+1]) / 2

		if norms[k] > 0 {
			p.Intensity[k] = sums[k] / norms[k]
		}
	}

	return p
}
