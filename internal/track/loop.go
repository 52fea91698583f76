// Package track implements the per-tick tracking engine: topocentric
// observation, finite-difference range-rate estimation, and Doppler frequency
// correction for the downlink and uplink legs.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/metrics"
	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

// DefaultCadence is the tracking sample interval when none is configured.
const DefaultCadence = 1 * time.Second

// maxConsecutiveFailures aborts a tracking run after this many propagation
// failures in a row. Isolated failures only drop their tick.
const maxConsecutiveFailures = 5

// elevationSlackDeg absorbs the pass predictor's crossing tolerance so the
// first tick of a pass, which sits exactly on the threshold, is not treated
// as already set.
const elevationSlackDeg = 0.01

// degenerateElevationDeg marks the near-zenith band where azimuth is
// geometrically unreliable. Observations are still emitted, only flagged.
const degenerateElevationDeg = 89.9

// Config holds the tracking-loop parameters supplied by the caller.
type Config struct {
	FreqTxHz        float64       // satellite downlink transmit frequency (Hz)
	UplinkTxHz      float64       // satellite uplink receive frequency (Hz); 0 disables the uplink leg
	Cadence         time.Duration // sample interval (default 1s)
	RangeRateStep   time.Duration // finite-difference Δ (default 10s)
	MinElevationDeg float64       // loop terminates early below this elevation
}

// Observation is one tracking sample: topocentric fix, range-rate, and
// Doppler-corrected frequencies. Immutable once produced.
type Observation struct {
	Time           time.Time `json:"time"`
	AzimuthDeg     float64   `json:"azimuth_deg"`
	ElevationDeg   float64   `json:"elevation_deg"`
	RangeKm        float64   `json:"range_km"`
	RangeRateMS    float64   `json:"range_rate_m_s"`
	DopplerShiftHz float64   `json:"doppler_shift_hz"`
	FreqRxHz       float64   `json:"freq_rx_hz"`
	FreqUplinkHz   float64   `json:"freq_uplink_hz,omitempty"`
}

// Tracker runs the tracking loop for one satellite and one observer.
// It holds no mutable state between runs; each tick is a pure function of
// (observer, source, timestamp).
type Tracker struct {
	src    propagation.Source
	obs    transform.ObserverPosition
	config Config
	logger *slog.Logger
}

// NewTracker creates a Tracker, applying cadence and Δ defaults.
func NewTracker(src propagation.Source, obs transform.ObserverPosition, config Config, logger *slog.Logger) *Tracker {
	if config.Cadence <= 0 {
		config.Cadence = DefaultCadence
	}
	if config.RangeRateStep <= 0 {
		config.RangeRateStep = DefaultRangeRateStep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{src: src, obs: obs, config: config, logger: logger}
}

// ObserveAt computes a single Observation at the given instant.
// Needs two source evaluations: one at t for the fix, one at t+Δ for the
// range-rate finite difference.
func (tr *Tracker) ObserveAt(at time.Time) (Observation, error) {
	at = at.UTC()

	la, err := lookAnglesAt(tr.src, tr.obs, at)
	if err != nil {
		return Observation{}, err
	}
	laNext, err := lookAnglesAt(tr.src, tr.obs, at.Add(tr.config.RangeRateStep))
	if err != nil {
		return Observation{}, err
	}

	rangeRate := (laNext.RangeM() - la.RangeM()) / tr.config.RangeRateStep.Seconds()
	shift := DopplerShift(tr.config.FreqTxHz, rangeRate)

	obs := Observation{
		Time:           at,
		AzimuthDeg:     la.AzimuthDeg,
		ElevationDeg:   la.ElevationDeg,
		RangeKm:        la.RangeKm,
		RangeRateMS:    rangeRate,
		DopplerShiftHz: shift,
		FreqRxHz:       tr.config.FreqTxHz + shift,
	}
	if tr.config.UplinkTxHz > 0 {
		obs.FreqUplinkHz = UplinkFreq(tr.config.UplinkTxHz, rangeRate)
	}
	return obs, nil
}

// Run produces the ordered observation sequence for [start, end) at the
// configured cadence. Timestamps are strictly ascending with no duplicates.
//
// Propagation failures drop their tick; after maxConsecutiveFailures in a row
// the sequence collected so far is returned together with a summary error.
// The loop also terminates early when the satellite sets below the minimum
// elevation before the window ends.
func (tr *Tracker) Run(ctx context.Context, start, end time.Time) ([]Observation, error) {
	var (
		observations []Observation
		consecutive  int
		seenAbove    bool
		propErr      *propagation.PropagationError
	)

	for t := start.UTC(); t.Before(end); t = t.Add(tr.config.Cadence) {
		if err := ctx.Err(); err != nil {
			return observations, err
		}

		obs, err := tr.ObserveAt(t)
		if err != nil {
			if !errors.As(err, &propErr) {
				return observations, err
			}
			metrics.IncTrackTicks("propagation_error")
			consecutive++
			tr.logger.Warn("tracking tick dropped", "time", t.Format(time.RFC3339), "error", err)
			if consecutive >= maxConsecutiveFailures {
				return observations, fmt.Errorf("aborting after %d consecutive propagation failures: %w", consecutive, err)
			}
			continue
		}
		consecutive = 0

		if obs.ElevationDeg >= tr.config.MinElevationDeg-elevationSlackDeg {
			seenAbove = true
		} else if seenAbove {
			// The satellite was up and has now set; a run that starts below
			// the threshold keeps sampling instead.
			tr.logger.Info("satellite set below minimum elevation, ending track",
				"time", t.Format(time.RFC3339),
				"elevation_deg", obs.ElevationDeg,
				"min_elevation_deg", tr.config.MinElevationDeg,
			)
			break
		}

		if obs.ElevationDeg > degenerateElevationDeg {
			tr.logger.Warn("near-zenith geometry, azimuth unstable",
				"time", t.Format(time.RFC3339),
				"elevation_deg", obs.ElevationDeg,
			)
		}

		metrics.IncTrackTicks("ok")
		observations = append(observations, obs)
	}

	return observations, nil
}
