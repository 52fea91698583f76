package track

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeSource synthesizes TEME states whose ECEF projection follows posAt.
// The TEME position is the inverse GMST rotation of the desired ECEF
// position, so the engine's TEME→ECEF step recovers posAt exactly.
type fakeSource struct {
	posAt func(t time.Time) (x, y, z float64) // desired ECEF, meters
	errAt func(t time.Time) error
}

func (f *fakeSource) StateAt(t time.Time) (propagation.StateVector, error) {
	if f.errAt != nil {
		if err := f.errAt(t); err != nil {
			return propagation.StateVector{}, err
		}
	}
	x, y, z := f.posAt(t)
	gmst := transform.GMST(t)
	cosG, sinG := math.Cos(gmst), math.Sin(gmst)
	return propagation.StateVector{
		Position: [3]float64{x*cosG - y*sinG, x*sinG + y*cosG, z},
		Time:     t,
	}, nil
}

// recedingOverhead places the satellite on the observer's local vertical,
// starting at startAlt and receding radially at rate m/s. Range-rate along
// the line of sight is exactly rate.
func recedingOverhead(obs transform.ObserverPosition, t0 time.Time, startAlt, rate float64) *fakeSource {
	return &fakeSource{
		posAt: func(t time.Time) (float64, float64, float64) {
			d := startAlt + rate*t.Sub(t0).Seconds()
			scale := 1 + d/math.Sqrt(obs.ECEFx*obs.ECEFx+obs.ECEFy*obs.ECEFy+obs.ECEFz*obs.ECEFz)
			return obs.ECEFx * scale, obs.ECEFy * scale, obs.ECEFz * scale
		},
	}
}

func TestRangeRateConstantRecession(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	src := recedingOverhead(obs, t0, 500_000, 7000)

	rr, err := RangeRate(src, obs, t0, DefaultRangeRateStep)
	if err != nil {
		t.Fatalf("RangeRate: %v", err)
	}
	if math.Abs(rr-7000) > 0.01 {
		t.Errorf("range-rate = %.4f m/s, want 7000", rr)
	}
}

func TestObserveAtDopplerDirection(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	src := recedingOverhead(obs, t0, 500_000, 7000)

	tr := NewTracker(src, obs, Config{
		FreqTxHz:   435_850_000,
		UplinkTxHz: 145_900_000,
	}, testLogger())

	o, err := tr.ObserveAt(t0)
	if err != nil {
		t.Fatalf("ObserveAt: %v", err)
	}

	if o.RangeRateMS <= 0 {
		t.Errorf("range-rate = %.2f m/s, want positive (receding)", o.RangeRateMS)
	}
	if o.DopplerShiftHz >= 0 {
		t.Errorf("Doppler shift = %.2f Hz, want negative for receding satellite", o.DopplerShiftHz)
	}
	if o.FreqRxHz >= 435_850_000 {
		t.Errorf("rx frequency = %.2f Hz, want below nominal", o.FreqRxHz)
	}
	if o.FreqUplinkHz <= 145_900_000 {
		t.Errorf("uplink frequency = %.2f Hz, want above nominal", o.FreqUplinkHz)
	}
	if math.Abs(o.ElevationDeg-90) > 0.01 {
		t.Errorf("elevation = %.3f deg, want 90 (overhead)", o.ElevationDeg)
	}
	if math.Abs(o.RangeKm-500) > 0.1 {
		t.Errorf("range = %.3f km, want ~500", o.RangeKm)
	}
}

// TestRunObservationCount verifies a 10-minute window at 1 Hz yields exactly
// 600 strictly ascending observations.
func TestRunObservationCount(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	src := recedingOverhead(obs, t0, 500_000, 0)

	tr := NewTracker(src, obs, Config{FreqTxHz: 145_800_000}, testLogger())

	observations, err := tr.Run(context.Background(), t0, t0.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(observations) != 600 {
		t.Fatalf("got %d observations, want 600", len(observations))
	}
	for i := 1; i < len(observations); i++ {
		if !observations[i].Time.After(observations[i-1].Time) {
			t.Fatalf("timestamps not strictly ascending at index %d: %v then %v",
				i, observations[i-1].Time, observations[i].Time)
		}
	}
}

// TestRunEndsWhenSatelliteSets drives the satellite away in longitude so its
// elevation decays; the loop must stop at the threshold, not the window end.
func TestRunEndsWhenSatelliteSets(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	src := &fakeSource{
		posAt: func(tm time.Time) (float64, float64, float64) {
			// 0.1°/s eastward drift at 800 km altitude.
			lon := 0.1 * tm.Sub(t0).Seconds()
			p := transform.NewObserverPosition(0, lon, 800_000)
			return p.ECEFx, p.ECEFy, p.ECEFz
		},
	}

	tr := NewTracker(src, obs, Config{
		FreqTxHz:        145_800_000,
		MinElevationDeg: 10,
	}, testLogger())

	observations, err := tr.Run(context.Background(), t0, t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(observations) == 0 {
		t.Fatal("expected some observations before the satellite set")
	}
	if len(observations) >= 30*60 {
		t.Fatalf("loop ran the full window (%d observations), expected early termination", len(observations))
	}
	last := observations[len(observations)-1]
	if last.ElevationDeg < 10-elevationSlackDeg {
		t.Errorf("last emitted elevation = %.3f deg, below threshold", last.ElevationDeg)
	}
}

// TestRunSkipsIsolatedFailures drops failing ticks without ending the run.
func TestRunSkipsIsolatedFailures(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	src := recedingOverhead(obs, t0, 500_000, 0)
	src.errAt = func(tm time.Time) error {
		s := int(tm.Sub(t0).Seconds())
		if s == 3 || s == 7 {
			return &propagation.PropagationError{NORADID: 25544, At: tm, Reason: "degenerate"}
		}
		return nil
	}

	tr := NewTracker(src, obs, Config{FreqTxHz: 145_800_000}, testLogger())

	observations, err := tr.Run(context.Background(), t0, t0.Add(20*time.Second))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Ticks at 3s and 7s fail outright; the finite-difference partner at
	// t+Δ may knock out earlier ticks too, but the run must survive.
	if len(observations) == 0 || len(observations) >= 20 {
		t.Errorf("got %d observations, want a partial sequence shorter than 20", len(observations))
	}
	for _, o := range observations {
		s := int(o.Time.Sub(t0).Seconds())
		if s == 3 || s == 7 {
			t.Errorf("observation emitted for failed tick at +%ds", s)
		}
	}
}

// TestRunAbortsAfterConsecutiveFailures verifies the run stops with an error
// once every tick fails.
func TestRunAbortsAfterConsecutiveFailures(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	src := recedingOverhead(obs, t0, 500_000, 0)
	src.errAt = func(tm time.Time) error {
		return &propagation.PropagationError{NORADID: 25544, At: tm, Reason: "decayed"}
	}

	tr := NewTracker(src, obs, Config{FreqTxHz: 145_800_000}, testLogger())

	observations, err := tr.Run(context.Background(), t0, t0.Add(1*time.Minute))
	if err == nil {
		t.Fatal("expected abort error, got nil")
	}
	var propErr *propagation.PropagationError
	if !errors.As(err, &propErr) {
		t.Errorf("abort error does not wrap *PropagationError: %v", err)
	}
	if len(observations) != 0 {
		t.Errorf("got %d observations, want 0", len(observations))
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	obs := transform.NewObserverPosition(0, 0, 0)
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	src := recedingOverhead(obs, t0, 500_000, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := NewTracker(src, obs, Config{FreqTxHz: 145_800_000}, testLogger())
	if _, err := tr.Run(ctx, t0, t0.Add(time.Minute)); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
