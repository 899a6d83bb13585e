package integrate

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/azint/internal/calibration"
)

// centredGeometry puts the beam centre in the middle of a size x size
// detector with 100µm pixels, 10cm away.
func centredGeometry(size int) *calibration.Geometry {
	centre := float64(size) * 1e-4 / 2

	return &calibration.Geometry{
		Distance:   0.1,
		Poni1:      centre,
		Poni2:      centre,
		PixelSize1: 1e-4,
		PixelSize2: 1e-4,
		Wavelength: 1e-10,
	}
}

func constantImage(size int, v float64) *mat.Dense {
	data := make([]float64, size*size)
	for i := range data {
		data[i] = v
	}

	return mat.NewDense(size, size, data)
}

func defaultOptions() Options {
	return Options{Bins: 32, Polarization: 0.95, Unit: UnitQA}
}

// ---------------------------------------------------------------------------
// Integrate
// ---------------------------------------------------------------------------

func TestIntegrate_ConstantImageIsFlat(t *testing.T) {
	const size = 64

	a := NewAzimuthal(centredGeometry(size))

	p, err := a.Integrate(constantImage(size, 100), nil, defaultOptions())
	require.NoError(t, err)
	require.Equal(t, 32, p.Len())

	// At these small angles polarization and solid angle stay within 1%.
	for k, v := range p.Intensity {
		if p.Count[k] == 0 {
			continue
		}

		assert.InDelta(t, 100, v, 1.5, "bin %d", k)
	}

	assert.InDelta(t, float64(size*size), floats.Sum(p.Count), 0)
	assert.Equal(t, UnitQA, p.Unit)
	assert.InDelta(t, 0.95, p.Polarization, 0)
}

func TestIntegrate_RadialAxisIncreasing(t *testing.T) {
	const size = 32

	p, err := NewAzimuthal(centredGeometry(size)).Integrate(constantImage(size, 1), nil, defaultOptions())
	require.NoError(t, err)

	assert.True(t, sort.Float64sAreSorted(p.Radial))
	assert.Greater(t, p.Radial[0], 0.0)
}

func TestIntegrate_MaskExcludesPixels(t *testing.T) {
	const size = 16

	img := constantImage(size, 10)
	mask := mat.NewDense(size, size, nil)

	// A hot row that would dominate the pattern if it were counted.
	for j := 0; j < size; j++ {
		img.Set(0, j, 1e9)
		mask.Set(0, j, 1)
	}

	p, err := NewAzimuthal(centredGeometry(size)).Integrate(img, mask, defaultOptions())
	require.NoError(t, err)

	assert.Equal(t, size, p.MaskedPixels)
	assert.InDelta(t, float64(size*size-size), floats.Sum(p.Count), 0)
	assert.Less(t, floats.Max(p.Intensity), 20.0)
}

func TestIntegrate_NonFinitePixelsSkipped(t *testing.T) {
	const size = 8

	img := constantImage(size, 5)
	img.Set(1, 1, math.NaN())
	img.Set(2, 2, math.Inf(1))

	p, err := NewAzimuthal(centredGeometry(size)).Integrate(img, nil, defaultOptions())
	require.NoError(t, err)
	assert.InDelta(t, float64(size*size-2), floats.Sum(p.Count), 0)
}

func TestIntegrate_Errors(t *testing.T) {
	a := NewAzimuthal(centredGeometry(8))

	t.Run("nil image", func(t *testing.T) {
		_, err := a.Integrate(nil, nil, defaultOptions())
		assert.Error(t, err)
	})

	t.Run("too few bins", func(t *testing.T) {
		opts := defaultOptions()
		opts.Bins = 1
		_, err := a.Integrate(constantImage(8, 1), nil, opts)
		assert.ErrorContains(t, err, "invalid bin count")
	})

	t.Run("mask shape mismatch", func(t *testing.T) {
		_, err := a.Integrate(constantImage(8, 1), mat.NewDense(4, 4, nil), defaultOptions())
		assert.ErrorContains(t, err, "does not match image shape")
	})

	t.Run("non-finite geometry", func(t *testing.T) {
		for _, mutate := range []func(g *calibration.Geometry){
			func(g *calibration.Geometry) { g.Poni1 = math.NaN() },
			func(g *calibration.Geometry) { g.Distance = math.Inf(1) },
			func(g *calibration.Geometry) { g.Rot2 = math.Inf(-1) },
		} {
			g := centredGeometry(16)
			mutate(g)

			var err error

			require.NotPanics(t, func() {
				_, err = NewAzimuthal(g).Integrate(constantImage(16, 1), nil, defaultOptions())
			})
			assert.ErrorContains(t, err, "must be finite")
		}
	})

	t.Run("everything masked", func(t *testing.T) {
		mask := constantImage(8, 1)
		_, err := a.Integrate(constantImage(8, 1), mask, defaultOptions())
		assert.True(t, errors.Is(err, ErrNoPixels))
	})
}

func TestSolidAngle(t *testing.T) {
	const dist = 0.1

	assert.InDelta(t, 1.0, solidAngle(dist, 0, 0), 1e-12)
	assert.InDelta(t, math.Pow(1/math.Sqrt2, 3), solidAngle(dist, dist, 0), 1e-12)
	assert.InDelta(t, math.Pow(1/math.Sqrt2, 3), solidAngle(dist, 0, -dist), 1e-12)
	assert.InDelta(t, math.Pow(1/math.Sqrt(3), 3), solidAngle(dist, dist, dist), 1e-12)
}

func TestIntegrate_TiltedDetectorUsesDetectorNormal(t *testing.T) {
	const size = 16

	g := centredGeometry(size)
	g.Rot1 = 0.3

	// A single unmasked pixel beside the PONI sees almost the full solid angle
	// though it scatters at 2θ = Rot1 on a tilted detector.
	mask := constantImage(size, 1)
	mask.Set(size/2, size/2, 0)

	img := constantImage(size, 0)
	img.Set(size/2, size/2, 10)

	opts := defaultOptions()
	opts.Polarization = 0

	p, err := NewAzimuthal(g).Integrate(img, mask, opts)
	require.NoError(t, err)

	tth := 0.3
	pol := 0.5 * (1 + math.Cos(tth)*math.Cos(tth))

	dist := g.Distance
	p1 := (float64(size/2)+0.5)*g.PixelSize1 - g.Poni1
	p2 := (float64(size/2)+0.5)*g.PixelSize2 - g.Poni2
	want := 10 / (pol * solidAngle(dist, p1, p2))

	var got float64

	for k, c := range p.Count {
		if c > 0 {
			got = p.Intensity[k]
		}
	}

	assert.InDelta(t, want, got, want*1e-3)
}

func TestIntegrate_UnitsAgree(t *testing.T) {
	const size = 32

	a := NewAzimuthal(centredGeometry(size))
	img := constantImage(size, 1)

	optsA := defaultOptions()
	pA, err := a.Integrate(img, nil, optsA)
	require.NoError(t, err)

	optsNm := defaultOptions()
	optsNm.Unit = UnitQNm
	pNm, err := a.Integrate(img, nil, optsNm)
	require.NoError(t, err)

	for k := range pA.Radial {
		assert.InDelta(t, pA.Radial[k]*10, pNm.Radial[k], 1e-9)
	}
}

// ---------------------------------------------------------------------------
// polarization
// ---------------------------------------------------------------------------

func TestPolarization(t *testing.T) {
	// Forward scattering is never corrected.
	assert.InDelta(t, 1.0, polarization(0, 0.3, 0.95), 1e-12)

	// Unpolarized beam at 90° halves the intensity regardless of azimuth.
	assert.InDelta(t, 0.5, polarization(math.Pi/2, 0, 0), 1e-12)
	assert.InDelta(t, 0.5, polarization(math.Pi/2, 1.1, 0), 1e-12)

	// Fully horizontal polarization at 90° in the horizontal plane.
	assert.InDelta(t, 0.0, polarization(math.Pi/2, 0, 1), 1e-12)
	assert.InDelta(t, 1.0, polarization(math.Pi/2, math.Pi/2, 1), 1e-12)
}

// ---------------------------------------------------------------------------
// Unit
// ---------------------------------------------------------------------------

func TestParseUnit(t *testing.T) {
	for _, s := range []string{"q_nm^-1", "q_A^-1", "2th_deg", "2th_rad"} {
		u, err := ParseUnit(s)
		require.NoError(t, err)
		assert.Equal(t, s, string(u))
	}

	_, err := ParseUnit("chi_deg")
	assert.ErrorContains(t, err, "unknown unit")
}

func TestUnit_FromTwoTheta(t *testing.T) {
	const wavelength = 1e-10 // 1 Å
	tth := math.Pi / 3

	assert.InDelta(t, 60.0, Unit2ThDeg.FromTwoTheta(tth, wavelength), 1e-9)
	assert.InDelta(t, tth, Unit2ThRad.FromTwoTheta(tth, wavelength), 1e-12)
	// q = 4π sin(30°) / 1Å = 2π Å⁻¹
	assert.InDelta(t, 2*math.Pi, UnitQA.FromTwoTheta(tth, wavelength), 1e-9)
	assert.InDelta(t, 20*math.Pi, UnitQNm.FromTwoTheta(tth, wavelength), 1e-9)
}
