package propagation

import (
	"fmt"
	"math"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Selected for: most community adoption, pure Go (no CGO), battle-tested since
// 2016, explicit TEME output.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. We detect propagation failures by checking output for NaN/Inf
// and unreasonable position magnitudes.

// SGP4Source implements Source for a single satellite's two-line element set.
type SGP4Source struct {
	sat     satellite.Satellite
	noradID int
}

// NewSGP4Source creates an SGP4-backed Source from TLE lines.
// Returns an error if the TLE cannot be parsed or the SGP4 model fails to initialize.
//
// Pre-validates TLE format before passing to the library, because go-satellite
// calls log.Fatal on malformed input (which would kill the process).
func NewSGP4Source(line1, line2 string, noradID int) (*SGP4Source, error) {
	if err := validateTLELines(line1, line2); err != nil {
		return nil, fmt.Errorf("invalid TLE for NORAD %d: %w", noradID, err)
	}

	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", noradID, sat.Error, sat.ErrorStr)
	}
	return &SGP4Source{sat: sat, noradID: noradID}, nil
}

// NORADID returns the catalog number the source was built for.
func (s *SGP4Source) NORADID() int {
	return s.noradID
}

// validateTLELines performs basic format validation on TLE lines.
// This prevents passing garbage to go-satellite which calls log.Fatal on parse errors.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// StateAt computes the satellite state at the given time.
// Returns position and velocity in the TEME frame (meters, m/s).
func (s *SGP4Source) StateAt(t time.Time) (StateVector, error) {
	t = t.UTC()
	pos, vel := satellite.Propagate(s.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	// Detect propagation failures via NaN/Inf check.
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return StateVector{}, &PropagationError{
			NORADID: s.noradID,
			At:      t,
			Reason:  "output is NaN/Inf",
		}
	}

	// Sanity check: position magnitude should be between ~6200km and ~50000km.
	mag := math.Sqrt(pos.X*pos.X + pos.Y*pos.Y + pos.Z*pos.Z)
	if mag < 6200.0 || mag > 50000.0 {
		return StateVector{}, &PropagationError{
			NORADID: s.noradID,
			At:      t,
			Reason:  fmt.Sprintf("unreasonable position magnitude %.1f km", mag),
		}
	}

	// go-satellite works in km and km/s; the engine is meters and m/s.
	return StateVector{
		Position: [3]float64{pos.X * 1000.0, pos.Y * 1000.0, pos.Z * 1000.0},
		Velocity: [3]float64{vel.X * 1000.0, vel.Y * 1000.0, vel.Z * 1000.0},
		Time:     t,
	}, nil
}
