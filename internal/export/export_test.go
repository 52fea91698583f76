package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
)

func sampleObservations() []track.Observation {
	t0 := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return []track.Observation{
		{
			Time:           t0,
			AzimuthDeg:     123.456,
			ElevationDeg:   10.001,
			RangeKm:        1543.2109,
			RangeRateMS:    -6543.21,
			DopplerShiftHz: 3182.55,
			FreqRxHz:       145_803_182.55,
		},
		{
			Time:           t0.Add(time.Second),
			AzimuthDeg:     123.5,
			ElevationDeg:   10.2,
			RangeKm:        1536.7,
			RangeRateMS:    -6500.0,
			DopplerShiftHz: 3161.53,
			FreqRxHz:       145_803_161.53,
		},
	}
}

func samplePass() passes.Pass {
	aos := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return passes.Pass{
		AOS:              aos,
		LOS:              aos.Add(9 * time.Minute),
		MaxElevationTime: aos.Add(4 * time.Minute),
		MaxElevationDeg:  47.3,
		AOSAzimuthDeg:    201.2,
		LOSAzimuthDeg:    33.8,
		DurationSeconds:  540,
		GroundTrack: []passes.GroundTrackPoint{
			{Time: aos, Latitude: -30.1, Longitude: -65.0, Altitude: 420000, Elevation: 10.0},
			{Time: aos.Add(4 * time.Minute), Latitude: -33.5, Longitude: -59.2, Altitude: 421000, Elevation: 47.3},
			{Time: aos.Add(9 * time.Minute), Latitude: -37.0, Longitude: -53.1, Altitude: 422000, Elevation: 10.0},
		},
	}
}

func TestWriteObservationsCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteObservationsCSV(&buf, sampleObservations()); err != nil {
		t.Fatalf("WriteObservationsCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(records))
	}

	if got, want := strings.Join(records[0], ","), strings.Join(ObservationHeader, ","); got != want {
		t.Errorf("header = %q, want %q", got, want)
	}

	first := records[1]
	if first[0] != "2026-08-20T12:00:00Z" {
		t.Errorf("timestamp = %q, want RFC 3339 UTC", first[0])
	}
	if first[1] != "123.46" {
		t.Errorf("azimuth = %q, want %q (2 decimals)", first[1], "123.46")
	}
	if first[3] != "1543.211" {
		t.Errorf("range_km = %q, want %q (3 decimals)", first[3], "1543.211")
	}
	if first[6] != "145803182.55" {
		t.Errorf("freq_rx_hz = %q, want plain decimal, not scientific notation", first[6])
	}
}

func TestWriteObservationsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteObservationsCSV(&buf, nil); err != nil {
		t.Fatalf("WriteObservationsCSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d rows, want header only", len(records))
	}
}

func TestWritePassSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePassSummaryCSV(&buf, samplePass()); err != nil {
		t.Fatalf("WritePassSummaryCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading back CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(records))
	}
	if got, want := strings.Join(records[0], ","), strings.Join(PassSummaryHeader, ","); got != want {
		t.Errorf("header = %q, want %q", got, want)
	}
	row := records[1]
	if row[0] != "2026-08-20T12:00:00Z" || row[1] != "2026-08-20T12:09:00Z" {
		t.Errorf("AOS/LOS = %q/%q, unexpected", row[0], row[1])
	}
	if row[3] != "47.30" {
		t.Errorf("max elevation = %q, want %q", row[3], "47.30")
	}
}

func TestReportJSON(t *testing.T) {
	pass := samplePass()
	report := NewReport(
		SatelliteInfo{NORADID: 25544, Name: "ISS"},
		ObserverInfo{LatDeg: -34.6, LonDeg: -58.4, AltM: 25, MinElevationDeg: 10},
		track.Config{FreqTxHz: 145_800_000, RangeRateStep: 10 * time.Second},
		&pass,
		sampleObservations(),
	)

	if report.RunID == "" {
		t.Fatal("RunID is empty")
	}
	if report.RangeRateStepS != 10 {
		t.Errorf("RangeRateStepS = %v, want 10", report.RangeRateStepS)
	}

	var buf bytes.Buffer
	if err := report.WriteJSON(&buf); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	for _, key := range []string{"run_id", "generated_at", "satellite", "observer", "freq_tx_hz", "pass", "observations"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("report missing %q field", key)
		}
	}
	obsList, ok := decoded["observations"].([]any)
	if !ok || len(obsList) != 2 {
		t.Errorf("observations = %v, want 2 entries", decoded["observations"])
	}

	// Two reports of the same run must not share an ID.
	again := NewReport(SatelliteInfo{}, ObserverInfo{}, track.Config{}, nil, nil)
	if again.RunID == report.RunID {
		t.Error("RunID not unique across reports")
	}
}

func TestGroundTrackGeoJSON(t *testing.T) {
	data, err := GroundTrackGeoJSON(samplePass())
	if err != nil {
		t.Fatalf("GroundTrackGeoJSON: %v", err)
	}

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("type = %q, want FeatureCollection", fc.Type)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("got %d features, want track line + culmination point", len(fc.Features))
	}
	if fc.Features[0].Geometry.Type != "LineString" {
		t.Errorf("first feature geometry = %q, want LineString", fc.Features[0].Geometry.Type)
	}
	if fc.Features[1].Geometry.Type != "Point" {
		t.Errorf("second feature geometry = %q, want Point", fc.Features[1].Geometry.Type)
	}

	// The culmination point carries the highest-elevation sample.
	var pt [2]float64
	if err := json.Unmarshal(fc.Features[1].Geometry.Coordinates, &pt); err != nil {
		t.Fatalf("culmination coordinates: %v", err)
	}
	if pt[0] != -59.2 || pt[1] != -33.5 {
		t.Errorf("culmination at (%.1f, %.1f), want lon/lat (-59.2, -33.5)", pt[0], pt[1])
	}
}

func TestGroundTrackGeoJSONEmpty(t *testing.T) {
	if _, err := GroundTrackGeoJSON(passes.Pass{}); err == nil {
		t.Fatal("expected error for pass without ground track")
	}
}
