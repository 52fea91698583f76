// Package passes locates satellite passes over a ground observer: the AOS and
// LOS threshold crossings, the culmination, and the sub-satellite ground track.
//
// The search is a coarse elevation scan over the requested window followed by
// bisection refinement of each threshold crossing, so crossing times are found
// without evaluating every instant. The coarse step must stay shorter than the
// shortest pass worth finding or a short pass can slip between samples.
package passes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

const (
	// DefaultCoarseStep is the coarse-scan interval. 30s is comfortably
	// shorter than any LEO pass above a practical elevation threshold.
	DefaultCoarseStep = 30 * time.Second

	fineStep        = 1 * time.Second  // culmination / ground-track sampling
	groundTrackStep = 10 * time.Second // interval between ground track samples

	// crossingToleranceDeg bounds how far from the threshold a refined
	// AOS/LOS elevation may sit when bisection stops early.
	crossingToleranceDeg = 0.001

	minPassDur = 10 * time.Second
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Elevation float64   `json:"elevation"` // degrees above observer's horizon
}

// Pass describes a single satellite pass over an observer location.
// Invariant: AOS <= MaxElevationTime <= LOS, and the elevation at AOS and LOS
// equals the threshold within the bisection tolerance unless the pass was cut
// by a window edge (Truncated for LOS, ClampedAOS for AOS).
type Pass struct {
	AOS              time.Time          `json:"aos"`
	LOS              time.Time          `json:"los"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	MaxElevationDeg  float64            `json:"max_elevation_deg"`
	AOSAzimuthDeg    float64            `json:"aos_azimuth_deg"`
	LOSAzimuthDeg    float64            `json:"los_azimuth_deg"`
	DurationSeconds  float64            `json:"duration_seconds"`
	Truncated        bool               `json:"truncated,omitempty"`   // LOS clipped to window end
	ClampedAOS       bool               `json:"clamped_aos,omitempty"` // pass already in progress at window start
	GroundTrack      []GroundTrackPoint `json:"ground_track,omitempty"`
}

// Config holds per-satellite prediction parameters.
type Config struct {
	MinElevationDeg float64       // AOS/LOS threshold (degrees)
	CoarseStep      time.Duration // default DefaultCoarseStep
	MaxPasses       int           // 0 means 1
	WithGroundTrack bool          // sample sub-satellite points during the fine scan
}

// Predictor searches for passes of one satellite over one observer.
type Predictor struct {
	src    propagation.Source
	obs    transform.ObserverPosition
	config Config
	logger *slog.Logger
}

// NewPredictor creates a Predictor, applying defaults.
func NewPredictor(src propagation.Source, obs transform.ObserverPosition, config Config, logger *slog.Logger) *Predictor {
	if config.CoarseStep <= 0 {
		config.CoarseStep = DefaultCoarseStep
	}
	if config.MaxPasses <= 0 {
		config.MaxPasses = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Predictor{src: src, obs: obs, config: config, logger: logger}
}

// Next finds the first pass in [start, end]. A nil Pass with a nil error is
// the explicit "no pass in window" outcome, not a failure.
func (p *Predictor) Next(ctx context.Context, start, end time.Time) (*Pass, error) {
	passes, err := p.Find(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(passes) == 0 {
		return nil, nil
	}
	return &passes[0], nil
}

// Find locates up to MaxPasses passes in [start, end], in chronological order.
// An empty slice means no elevation sample ever exceeded the threshold, which
// is a normal outcome, not an error. An error is returned only when the window
// yields no usable samples at all.
func (p *Predictor) Find(ctx context.Context, start, end time.Time) ([]Pass, error) {
	start, end = start.UTC(), end.UTC()
	thr := p.config.MinElevationDeg

	var (
		passes   []Pass
		valid    int
		invalid  int
		lastErr  error
		prevT    time.Time // last usable below-threshold sample
		havePrev bool
	)

	for t := start; !t.After(end) && len(passes) < p.config.MaxPasses; t = t.Add(p.config.CoarseStep) {
		if err := ctx.Err(); err != nil {
			return passes, err
		}

		el, _, _, err := p.elevationAt(t)
		if err != nil {
			// Sample unavailable: skip it, the scan widens naturally.
			invalid++
			lastErr = err
			continue
		}
		valid++

		if el < thr {
			prevT, havePrev = t, true
			continue
		}

		// Above threshold: establish AOS, either by refining the rising
		// crossing inside [prevT, t] or, when there is no earlier usable
		// sample, by clamping to the window start (pass in progress).
		var aos time.Time
		clamped := false
		if havePrev {
			aos = p.bisectCrossing(prevT, t, thr, true)
		} else {
			aos = start
			clamped = true
		}

		pass, err := p.completePass(ctx, aos, clamped, end)
		if err != nil {
			return passes, err
		}
		if pass != nil {
			if pass.Truncated || pass.LOS.Sub(pass.AOS) >= minPassDur {
				passes = append(passes, *pass)
			}
			// Resume scanning just past the setting crossing.
			t = pass.LOS
			prevT, havePrev = pass.LOS, true
		}
	}

	if valid == 0 {
		if invalid == 0 {
			// Zero scan iterations, so start was after end.
			return nil, fmt.Errorf("empty scan window [%s, %s]",
				start.Format(time.RFC3339), end.Format(time.RFC3339))
		}
		return nil, fmt.Errorf("no usable samples in window (%d propagation failures): %w", invalid, lastErr)
	}
	if invalid > 0 {
		p.logger.Warn("pass scan skipped unusable samples", "invalid", invalid, "valid", valid)
	}
	return passes, nil
}

// completePass walks forward from AOS, fine-sampling elevation to find the
// culmination and the setting crossing. When the window ends before the
// satellite sets, the pass is closed at the window end and flagged.
func (p *Predictor) completePass(ctx context.Context, aos time.Time, clamped bool, windowEnd time.Time) (*Pass, error) {
	thr := p.config.MinElevationDeg
	pass := &Pass{AOS: aos, ClampedAOS: clamped}

	var (
		maxEl       = -90.0
		maxElTime   = aos
		lastAboveT  time.Time
		lastAboveAz float64
		sampled     bool
	)

	for t := aos; !t.After(windowEnd); t = t.Add(fineStep) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		el, la, ecef, err := p.elevationAt(t)
		if err != nil {
			continue
		}

		if el < thr-crossingToleranceDeg && sampled {
			// Setting crossing bracketed by [lastAboveT, t].
			pass.LOS = p.bisectCrossing(lastAboveT, t, thr, false)
			pass.LOSAzimuthDeg = lastAboveAz
			if _, losLA, _, err := p.elevationAt(pass.LOS); err == nil {
				pass.LOSAzimuthDeg = losLA.AzimuthDeg
			}
			break
		}

		if !sampled {
			pass.AOSAzimuthDeg = la.AzimuthDeg
			sampled = true
		}
		if el > maxEl {
			maxEl = el
			maxElTime = t
		}
		lastAboveT, lastAboveAz = t, la.AzimuthDeg

		if p.config.WithGroundTrack && int(t.Sub(aos).Seconds())%int(groundTrackStep.Seconds()) == 0 {
			geo := transform.ECEFToGeodetic(ecef.X, ecef.Y, ecef.Z)
			pass.GroundTrack = append(pass.GroundTrack, GroundTrackPoint{
				Time:      t,
				Latitude:  geo.LatDeg,
				Longitude: geo.LonDeg,
				Altitude:  geo.AltM,
				Elevation: el,
			})
		}
	}

	if !sampled {
		return nil, nil
	}

	if pass.LOS.IsZero() {
		// Still above threshold at the window edge: truncated pass.
		pass.LOS = windowEnd
		pass.LOSAzimuthDeg = lastAboveAz
		pass.Truncated = true
	}

	pass.MaxElevationTime = maxElTime
	pass.MaxElevationDeg = maxEl
	pass.DurationSeconds = pass.LOS.Sub(pass.AOS).Seconds()
	return pass, nil
}

// bisectCrossing refines a threshold crossing inside [lo, hi], where hi is the
// above-threshold side for a rising crossing and lo for a setting one. Stops
// when the midpoint elevation is within tolerance of the threshold or the
// bracket collapses below the propagator's one-second resolution, and returns
// a time on the above-threshold side of the crossing.
func (p *Predictor) bisectCrossing(lo, hi time.Time, thr float64, rising bool) time.Time {
	for hi.Sub(lo) > time.Second {
		mid := lo.Add(hi.Sub(lo) / 2)
		el, _, _, err := p.elevationAt(mid)
		if err != nil {
			break
		}
		if el >= thr && el <= thr+crossingToleranceDeg {
			return mid
		}
		if (el >= thr) == rising {
			hi = mid
		} else {
			lo = mid
		}
	}
	if rising {
		return hi
	}
	return lo
}

// elevationAt computes the look angles and satellite ECEF position from the
// observer at time t.
func (p *Predictor) elevationAt(t time.Time) (float64, transform.LookAngles, transform.PositionECEF, error) {
	sv, err := p.src.StateAt(t)
	if err != nil {
		return 0, transform.LookAngles{}, transform.PositionECEF{}, err
	}
	ecef := transform.TEMEToECEF(sv.Position, sv.Velocity, t)
	la := transform.ECEFToLookAngles(p.obs, ecef.X, ecef.Y, ecef.Z)
	return la.ElevationDeg, la, ecef, nil
}
