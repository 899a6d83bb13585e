// Package calibration loads the detector geometry used to map pixel
// coordinates to scattering angles.
//
// Geometries are read from PONI files. A PONI file is a flat list of
// "Key: value" lines with "#" comments, which is valid YAML, so it is
// decoded with gopkg.in/yaml.v3. Both the version 1 layout (PixelSize1 /
// PixelSize2 keys) and the version 2 layout (pixel sizes inside the JSON
// Detector_config) are understood.
package calibration

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigurationError reports a calibration file that is missing, unreadable
// or incomplete. It is fatal at startup.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("calibration %s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Geometry describes the detector position relative to the sample. Lengths
// are in metres and angles in radians; dimension 1 is the slow (row) axis
// and dimension 2 the fast (column) axis.
type Geometry struct {
	Detector   string
	Distance   float64
	Poni1      float64
	Poni2      float64
	Rot1       float64
	Rot2       float64
	Rot3       float64
	PixelSize1 float64
	PixelSize2 float64
	Wavelength float64
}

// poniFile mirrors the keys of a PONI file.
type poniFile struct {
	Version        int            `yaml:"poni_version"`
	Detector       string         `yaml:"Detector"`
	DetectorConfig detectorConfig `yaml:"Detector_config"`
	PixelSize1     float64        `yaml:"PixelSize1"`
	PixelSize2     float64        `yaml:"PixelSize2"`
	Distance       float64        `yaml:"Distance"`
	Poni1          float64        `yaml:"Poni1"`
	Poni2          float64        `yaml:"Poni2"`
	Rot1           float64        `yaml:"Rot1"`
	Rot2           float64        `yaml:"Rot2"`
	Rot3           float64        `yaml:"Rot3"`
	Wavelength     float64        `yaml:"Wavelength"`
}

type detectorConfig struct {
	Pixel1 float64 `yaml:"pixel1"`
	Pixel2 float64 `yaml:"pixel2"`
}

// Load reads and validates the PONI file at path.
func Load(path string) (*Geometry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user supplied on purpose
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("reading calibration file: %w", err)}
	}

	g, err := Parse(data)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}

	return g, nil
}

// Parse decodes PONI content.
func Parse(data []byte) (*Geometry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty calibration file")
	}

	var pf poniFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing PONI: %w", err)
	}

	g := &Geometry{
		Detector:   pf.Detector,
		Distance:   pf.Distance,
		Poni1:      pf.Poni1,
		Poni2:      pf.Poni2,
		Rot1:       pf.Rot1,
		Rot2:       pf.Rot2,
		Rot3:       pf.Rot3,
		PixelSize1: pf.PixelSize1,
		PixelSize2: pf.PixelSize2,
		Wavelength: pf.Wavelength,
	}

	// Version 2 files move the pixel sizes into Detector_config.
	if g.PixelSize1 == 0 {
		g.PixelSize1 = pf.DetectorConfig.Pixel1
	}

	if g.PixelSize2 == 0 {
		g.PixelSize2 = pf.DetectorConfig.Pixel2
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}

// Validate checks that the geometry can be used for integration.
func (g *Geometry) Validate() error {
	checks := []struct {
		name     string
		value    float64
		positive bool
	}{
		{"Distance", g.Distance, true},
		{"Poni1", g.Poni1, false},
		{"Poni2", g.Poni2, false},
		{"Rot1", g.Rot1, false},
		{"Rot2", g.Rot2, false},
		{"Rot3", g.Rot3, false},
		{"PixelSize1", g.PixelSize1, true},
		{"PixelSize2", g.PixelSize2, true},
		{"Wavelength", g.Wavelength, true},
	}

	for _, c := range checks {
		if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
			return fmt.Errorf("%s must be finite, got %g", c.name, c.value)
		}

		if c.positive && c.value <= 0 {
			return fmt.Errorf("%s must be positive, got %g", c.name, c.value)
		}
	}

	return nil
}

// String returns a compact one-line description used in pattern headers.
func (g *Geometry) String() string {
	if g == nil {
		return "unknown"
	}

	return fmt.Sprintf("dist=%gm poni1=%gm poni2=%gm rot1=%grad rot2=%grad rot3=%grad pixel=%gx%gm wavelength=%gm",
		g.Distance, g.Poni1, g.Poni2, g.Rot1, g.Rot2, g.Rot3, g.PixelSize1, g.PixelSize2, g.Wavelength)
}
