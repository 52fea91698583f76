// Package propagation defines the orbital-state capability the tracking engine
// consumes, plus its SGP4 implementation. The engine itself never derives
// orbital mechanics from element sets; it only asks a Source for state vectors
// at specific instants.
package propagation

import (
	"fmt"
	"time"
)

// StateVector is an inertial (TEME) position/velocity at a specific instant.
// Units are meters and m/s.
type StateVector struct {
	Position [3]float64
	Velocity [3]float64
	Time     time.Time
}

// Source produces state vectors for a single satellite. Implementations must
// be safe for concurrent use and deterministic for identical timestamps.
//
// A failed evaluation returns a *PropagationError; callers treat that as fatal
// for the requested instant only.
type Source interface {
	StateAt(t time.Time) (StateVector, error)
}

// PropagationError reports that a state vector could not be produced for a
// requested timestamp, typically because the element set is stale or
// numerically degenerate there.
type PropagationError struct {
	NORADID int
	At      time.Time
	Reason  string
}

func (e *PropagationError) Error() string {
	return fmt.Sprintf("propagation failed for NORAD %d at %s: %s",
		e.NORADID, e.At.UTC().Format(time.RFC3339), e.Reason)
}
