package integrate

import (
	"fmt"
	"math"
	"strings"
)

// Unit selects the radial axis of an integrated pattern.
type Unit string

// Supported radial units.
const (
	UnitQNm     Unit = "q_nm^-1"
	UnitQA      Unit = "q_A^-1"
	Unit2ThDeg  Unit = "2th_deg"
	Unit2ThRad  Unit = "2th_rad"
	unitUnknown Unit = ""
)

var knownUnits = []Unit{UnitQNm, UnitQA, Unit2ThDeg, Unit2ThRad}

// ParseUnit resolves a unit label.
func ParseUnit(s string) (Unit, error) {
	for _, u := range knownUnits {
		if string(u) == s {
			return u, nil
		}
	}

	names := make([]string, len(knownUnits))
	for i, u := range knownUnits {
		names[i] = string(u)
	}

	return unitUnknown, fmt.Errorf("unknown unit %q: must be one of %s", s, strings.Join(names, ", "))
}

// FromTwoTheta converts a scattering angle (radians) into this unit.
// wavelength is in metres.
func (u Unit) FromTwoTheta(tth, wavelength float64) float64 {
	switch u {
	case UnitQNm:
		return 4e-9 * math.Pi * math.Sin(tth/2) / wavelength
	case UnitQA:
		return 4e-10 * math.Pi * math.Sin(tth/2) / wavelength
	case Unit2ThDeg:
		return tth * 180 / math.Pi
	default:
		return tth
	}
}
