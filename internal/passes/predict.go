package passes

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/metrics"
	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name,omitempty"`
	Passes  []Pass `json:"passes"`
	Error   string `json:"error,omitempty"`
}

// Request holds the parameters for a multi-satellite pass prediction request.
type Request struct {
	Observer        transform.ObserverPosition
	Entries         []tle.TLEEntry
	Start           time.Time
	HorizonHours    float64
	MinElevationDeg float64
	MaxPasses       int
	WithGroundTrack bool
}

// Predict computes passes for every satellite in the request.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
// Ordering of results matches the order of req.Entries.
func Predict(ctx context.Context, req Request, logger *slog.Logger) []SatellitePasses {
	results := make([]SatellitePasses, len(req.Entries))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, entry := range req.Entries {
		wg.Add(1)
		go func(idx int, e tle.TLEEntry) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = SatellitePasses{
					NORADID: e.NORADID,
					Name:    e.Name,
					Error:   "cancelled",
				}
				return
			}

			found, err := predictSatellite(ctx, req, e, logger)
			if err != nil {
				metrics.IncPassPredictions("error")
				results[idx] = SatellitePasses{
					NORADID: e.NORADID,
					Name:    e.Name,
					Error:   err.Error(),
				}
				return
			}
			if len(found) == 0 {
				metrics.IncPassPredictions("no_pass")
			} else {
				metrics.IncPassPredictions("ok")
			}
			results[idx] = SatellitePasses{
				NORADID: e.NORADID,
				Name:    e.Name,
				Passes:  found,
			}
		}(i, entry)
	}

	wg.Wait()
	return results
}

// predictSatellite finds the passes for a single TLE entry.
func predictSatellite(ctx context.Context, req Request, entry tle.TLEEntry, logger *slog.Logger) ([]Pass, error) {
	src, err := propagation.NewSGP4Source(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return nil, fmt.Errorf("sgp4 init: %w", err)
	}

	pred := NewPredictor(src, req.Observer, Config{
		MinElevationDeg: req.MinElevationDeg,
		MaxPasses:       req.MaxPasses,
		WithGroundTrack: req.WithGroundTrack,
	}, logger)

	end := req.Start.Add(time.Duration(req.HorizonHours * float64(time.Hour)))
	return pred.Find(ctx, req.Start, end)
}
