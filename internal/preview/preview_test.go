package preview

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/azint/internal/integrate"
)

func TestRender_PNG(t *testing.T) {
	p := &integrate.Pattern{
		Radial:    []float64{0.5, 1.0, 1.5, 2.0},
		Intensity: []float64{3, 40, 7, 2},
		Unit:      integrate.UnitQA,
	}

	data, err := Render(p, "sample02")
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, 0)
	assert.Greater(t, cfg.Height, 0)
}

func TestRender_Empty(t *testing.T) {
	_, err := Render(nil, "x")
	assert.Error(t, err)

	_, err = Render(&integrate.Pattern{}, "x")
	assert.Error(t, err)
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "/proc/sample02.png", PathFor("/proc/sample02.dat"))
	assert.Equal(t, "/proc/run.1.png", PathFor("/proc/run.1.xy"))
}
