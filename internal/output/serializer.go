package output

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hupe1980/azint/internal/integrate"
)

// Meta carries provenance written into pattern headers.
type Meta struct {
	// Source is the image the pattern was integrated from.
	Source string
	// Mask is the mask file path, empty when no mask was applied.
	Mask string
}

// Serializer renders a pattern into file content.
type Serializer func(p *integrate.Pattern, meta Meta) ([]byte, error)

// SerializeDat renders the two-column text format with a "#" header
// describing the integration.
func SerializeDat(p *integrate.Pattern, meta Meta) ([]byte, error) {
	if err := checkPattern(p); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	fmt.Fprintln(&buf, "# azint azimuthal integration")
	fmt.Fprintf(&buf, "# source: %s\n", meta.Source)
	fmt.Fprintf(&buf, "# geometry: %s\n", p.Geometry.String())
	fmt.Fprintf(&buf, "# polarization factor: %g\n", p.Polarization)

	if meta.Mask == "" {
		fmt.Fprintln(&buf, "# mask: none")
	} else {
		fmt.Fprintf(&buf, "# mask: %s (%d pixels masked)\n", meta.Mask, p.MaskedPixels)
	}

	fmt.Fprintf(&buf, "# bins: %d\n", p.Len())
	fmt.Fprintln(&buf, "#")
	fmt.Fprintf(&buf, "# %14s %14s\n", p.Unit, "I")

	writeRows(&buf, p, "%16.6e %14.6e\n")

	return buf.Bytes(), nil
}

// SerializeXY renders bare "x y" rows without a header.
func SerializeXY(p *integrate.Pattern, _ Meta) ([]byte, error) {
	if err := checkPattern(p); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	writeRows(&buf, p, "%.8e %.8e\n")

	return buf.Bytes(), nil
}

// SerializeCSV renders comma separated rows with a column header.
func SerializeCSV(p *integrate.Pattern, _ Meta) ([]byte, error) {
	if err := checkPattern(p); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s,I\n", p.Unit)
	writeRows(&buf, p, "%.8e,%.8e\n")

	return buf.Bytes(), nil
}

func writeRows(buf *bytes.Buffer, p *integrate.Pattern, format string) {
	for k := range p.Radial {
		fmt.Fprintf(buf, format, p.Radial[k], p.Intensity[k])
	}
}

func checkPattern(p *integrate.Pattern) error {
	if p == nil {
		return errors.New("nil pattern")
	}

	if len(p.Radial) != len(p.Intensity) {
		return fmt.Errorf("pattern has %d radial points but %d intensities", len(p.Radial), len(p.Intensity))
	}

	if p.Len() == 0 {
		return errors.New("empty pattern")
	}

	return nil
}
