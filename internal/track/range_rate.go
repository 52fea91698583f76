package track

import (
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

// DefaultRangeRateStep is the finite-difference interval Δ for range-rate
// estimation. 10 seconds keeps the Doppler error under ~10 Hz for
// representative LEO geometry while staying insensitive to SGP4's
// whole-second time resolution.
const DefaultRangeRateStep = 10 * time.Second

// lookAnglesAt evaluates the source at t and transforms the state into
// topocentric look angles for the observer.
func lookAnglesAt(src propagation.Source, obs transform.ObserverPosition, t time.Time) (transform.LookAngles, error) {
	sv, err := src.StateAt(t)
	if err != nil {
		return transform.LookAngles{}, err
	}
	ecef := transform.TEMEToECEF(sv.Position, sv.Velocity, t)
	return transform.ECEFToLookAngles(obs, ecef.X, ecef.Y, ecef.Z), nil
}

// RangeRate estimates the radial velocity (m/s, positive = receding) at time t
// by forward finite difference over two fresh source evaluations at t and
// t+step. The error bound is O(step) for smooth range functions.
func RangeRate(src propagation.Source, obs transform.ObserverPosition, t time.Time, step time.Duration) (float64, error) {
	if step <= 0 {
		step = DefaultRangeRateStep
	}

	la1, err := lookAnglesAt(src, obs, t)
	if err != nil {
		return 0, err
	}
	la2, err := lookAnglesAt(src, obs, t.Add(step))
	if err != nil {
		return 0, err
	}

	return (la2.RangeM() - la1.RangeM()) / step.Seconds(), nil
}
