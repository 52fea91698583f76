package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
)

// SatelliteInfo identifies the tracked satellite in a report.
type SatelliteInfo struct {
	NORADID int    `json:"norad_id"`
	Name    string `json:"name,omitempty"`
}

// ObserverInfo records the ground station a report was computed for.
type ObserverInfo struct {
	LatDeg          float64 `json:"lat_deg"`
	LonDeg          float64 `json:"lon_deg"`
	AltM            float64 `json:"alt_m"`
	MinElevationDeg float64 `json:"min_elevation_deg"`
}

// Report is the JSON run report: everything a validation pipeline needs to
// recompute and diff a tracking run. Element-set staleness and the
// finite-difference step are included because Doppler accuracy is sensitive
// to both.
type Report struct {
	RunID          string              `json:"run_id"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Satellite      SatelliteInfo       `json:"satellite"`
	Observer       ObserverInfo        `json:"observer"`
	FreqTxHz       float64             `json:"freq_tx_hz"`
	RangeRateStepS float64             `json:"range_rate_step_s"`
	TLEAgeSeconds  float64             `json:"tle_age_seconds,omitempty"`
	Pass           *passes.Pass        `json:"pass,omitempty"`
	Observations   []track.Observation `json:"observations"`
}

// NewReport assembles a Report with a fresh run ID.
func NewReport(sat SatelliteInfo, obs ObserverInfo, cfg track.Config, pass *passes.Pass, observations []track.Observation) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		GeneratedAt:    time.Now().UTC(),
		Satellite:      sat,
		Observer:       obs,
		FreqTxHz:       cfg.FreqTxHz,
		RangeRateStepS: cfg.RangeRateStep.Seconds(),
		Pass:           pass,
		Observations:   observations,
	}
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
