// Package export serializes tracking output into the stable schemas consumed
// by downstream comparison and plotting tools: CSV observation rows, a CSV
// pass summary, a JSON run report, and a GeoJSON ground track.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
)

// ObservationHeader is the CSV header for observation rows. External
// validation tooling matches these column names exactly; do not reorder.
var ObservationHeader = []string{
	"timestamp",
	"azimuth_deg",
	"elevation_deg",
	"range_km",
	"range_rate_m_s",
	"doppler_shift_hz",
	"freq_rx_hz",
}

// PassSummaryHeader is the CSV header for the pass summary row.
var PassSummaryHeader = []string{
	"aos_timestamp",
	"los_timestamp",
	"max_elevation_timestamp",
	"max_elevation_deg",
}

// WriteObservationsCSV writes one header row and one row per observation,
// in the order given (callers guarantee ascending timestamps).
func WriteObservationsCSV(w io.Writer, observations []track.Observation) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ObservationHeader); err != nil {
		return fmt.Errorf("writing observation header: %w", err)
	}

	for _, o := range observations {
		row := []string{
			o.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(o.AzimuthDeg, 'f', 2, 64),
			strconv.FormatFloat(o.ElevationDeg, 'f', 2, 64),
			strconv.FormatFloat(o.RangeKm, 'f', 3, 64),
			strconv.FormatFloat(o.RangeRateMS, 'f', 2, 64),
			strconv.FormatFloat(o.DopplerShiftHz, 'f', 2, 64),
			strconv.FormatFloat(o.FreqRxHz, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing observation row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WritePassSummaryCSV writes the single-row pass summary.
func WritePassSummaryCSV(w io.Writer, p passes.Pass) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(PassSummaryHeader); err != nil {
		return fmt.Errorf("writing pass summary header: %w", err)
	}

	row := []string{
		p.AOS.UTC().Format(time.RFC3339),
		p.LOS.UTC().Format(time.RFC3339),
		p.MaxElevationTime.UTC().Format(time.RFC3339),
		strconv.FormatFloat(p.MaxElevationDeg, 'f', 2, 64),
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("writing pass summary row: %w", err)
	}

	cw.Flush()
	return cw.Error()
}
