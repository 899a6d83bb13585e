package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/azint/internal/calibration"
	"github.com/hupe1980/azint/internal/integrate"
)

func testPattern() *integrate.Pattern {
	return &integrate.Pattern{
		Radial:       []float64{0.1, 0.2, 0.3},
		Intensity:    []float64{10, 20.5, 0},
		Count:        []float64{4, 8, 0},
		Unit:         integrate.UnitQA,
		Polarization: 0.95,
		MaskedPixels: 7,
		Geometry: calibration.Geometry{
			Distance: 0.1, PixelSize1: 1e-4, PixelSize2: 1e-4, Wavelength: 1e-10,
		},
	}
}

func TestSerializeDat_Header(t *testing.T) {
	out, err := SerializeDat(testPattern(), Meta{Source: "/raw/sample02.tif", Mask: "/proc/mask.tif"})
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "# azint azimuthal integration\n"))
	assert.Contains(t, s, "# source: /raw/sample02.tif")
	assert.Contains(t, s, "# polarization factor: 0.95")
	assert.Contains(t, s, "# mask: /proc/mask.tif (7 pixels masked)")
	assert.Contains(t, s, "# bins: 3")
	assert.Contains(t, s, "q_A^-1")
	assert.Contains(t, s, "dist=0.1m")
}

func TestSerializeDat_Rows(t *testing.T) {
	out, err := SerializeDat(testPattern(), Meta{})
	require.NoError(t, err)

	var rows []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if !strings.HasPrefix(line, "#") {
			rows = append(rows, strings.TrimSpace(line))
		}
	}

	require.Len(t, rows, 3)
	assert.Equal(t, []string{"1.000000e-01", "1.000000e+01"}, strings.Fields(rows[0]))
	assert.Equal(t, []string{"2.000000e-01", "2.050000e+01"}, strings.Fields(rows[1]))
	assert.Contains(t, string(out), "# mask: none")
}

func TestSerializeXY(t *testing.T) {
	out, err := SerializeXY(testPattern(), Meta{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1.00000000e-01 1.00000000e+01", lines[0])
}

func TestSerializeCSV(t *testing.T) {
	out, err := SerializeCSV(testPattern(), Meta{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "q_A^-1,I", lines[0])
	assert.Equal(t, "3.00000000e-01,0.00000000e+00", lines[3])
}

func TestSerialize_InvalidPatterns(t *testing.T) {
	tests := []struct {
		name string
		p    *integrate.Pattern
		want string
	}{
		{"nil", nil, "nil pattern"},
		{"empty", &integrate.Pattern{}, "empty pattern"},
		{"ragged", &integrate.Pattern{Radial: []float64{1, 2}, Intensity: []float64{1}}, "radial points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range []Serializer{SerializeDat, SerializeXY, SerializeCSV} {
				_, err := s(tt.p, Meta{})
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}
