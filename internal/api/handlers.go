package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

const (
	maxHorizonHours  = 72.0
	maxTrackDuration = 1 * time.Hour
	minTrackCadence  = 100 * time.Millisecond
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryFloat(r *http.Request, key string, def, min, max float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: not a number: %q", key, s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%s: %v outside [%v, %v]", key, v, min, max)
	}
	return v, nil
}

// queryObserver parses lat/lon/alt into an observer position. lat and lon
// are required, alt defaults to sea level.
func queryObserver(r *http.Request) (transform.ObserverPosition, error) {
	q := r.URL.Query()
	if q.Get("lat") == "" || q.Get("lon") == "" {
		return transform.ObserverPosition{}, fmt.Errorf("lat and lon are required")
	}
	lat, err := queryFloat(r, "lat", 0, -90, 90)
	if err != nil {
		return transform.ObserverPosition{}, err
	}
	lon, err := queryFloat(r, "lon", 0, -180, 180)
	if err != nil {
		return transform.ObserverPosition{}, err
	}
	alt, err := queryFloat(r, "alt", 0, -500, 9000)
	if err != nil {
		return transform.ObserverPosition{}, err
	}
	return transform.NewObserverPosition(lat, lon, alt), nil
}

// handleTLEMetadata reports the loaded dataset without its element text.
func (s *Server) handleTLEMetadata(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":          ds.Source,
		"fetched_at":      ds.FetchedAt.UTC().Format(time.RFC3339),
		"satellite_count": len(ds.Satellites),
		"epoch_min":       ds.EpochRange.Min.UTC().Format(time.RFC3339),
		"epoch_max":       ds.EpochRange.Max.UTC().Format(time.RFC3339),
		"age_seconds":     s.store.AgeSeconds(),
	})
}

// handlePasses predicts upcoming passes over an observer. Without norad_id
// it covers every satellite in the dataset.
func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	ds := s.store.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, "no TLE dataset loaded")
		return
	}

	observer, err := queryObserver(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := queryFloat(r, "hours", 24, 0.1, maxHorizonHours)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minElev, err := queryFloat(r, "min_elevation", 0, 0, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	maxPasses, err := queryFloat(r, "max_passes", 10, 1, 100)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := ds.Satellites
	if idStr := r.URL.Query().Get("norad_id"); idStr != "" {
		noradID, err := strconv.Atoi(idStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "norad_id must be an integer")
			return
		}
		entry, ok := ds.Find(noradID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown satellite")
			return
		}
		entries = []tle.TLEEntry{entry}
	}

	results := passes.Predict(r.Context(), passes.Request{
		Observer:        observer,
		Entries:         entries,
		Start:           time.Now().UTC(),
		HorizonHours:    hours,
		MinElevationDeg: minElev,
		MaxPasses:       int(maxPasses),
		WithGroundTrack: r.URL.Query().Get("ground_track") == "true",
	}, s.logger)

	writeJSON(w, http.StatusOK, map[string]any{"satellites": results})
}

// handleTrack runs a bounded tracking loop and returns the observations.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	noradID, err := strconv.Atoi(r.URL.Query().Get("norad_id"))
	if err != nil || noradID <= 0 {
		writeError(w, http.StatusBadRequest, "norad_id must be a positive integer")
		return
	}

	entry, ok := s.store.Entry(noradID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown satellite")
		return
	}

	observer, err := queryObserver(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	freqHz, err := queryFloat(r, "freq_hz", 0, 1, 1e12)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if freqHz == 0 {
		writeError(w, http.StatusBadRequest, "freq_hz is required")
		return
	}
	uplinkHz, err := queryFloat(r, "uplink_hz", 0, 0, 1e12)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	durationS, err := queryFloat(r, "duration_s", 600, 1, maxTrackDuration.Seconds())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cadenceS, err := queryFloat(r, "cadence_s", 1, minTrackCadence.Seconds(), 60)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	minElev, err := queryFloat(r, "min_elevation", 0, 0, 90)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now().UTC()
	if s := r.URL.Query().Get("start"); s != "" {
		start, err = time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be RFC 3339")
			return
		}
	}

	src, err := propagation.NewSGP4Source(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid element set")
		return
	}

	tracker := track.NewTracker(src, observer, track.Config{
		FreqTxHz:        freqHz,
		UplinkTxHz:      uplinkHz,
		Cadence:         time.Duration(cadenceS * float64(time.Second)),
		MinElevationDeg: minElev,
	}, s.logger)

	end := start.Add(time.Duration(durationS * float64(time.Second)))
	observations, err := tracker.Run(r.Context(), start, end)
	if err != nil {
		s.logger.Error("track run failed", "component", "api", "norad_id", noradID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "propagation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"norad_id":        entry.NORADID,
		"name":            entry.Name,
		"tle_age_seconds": entry.Age(time.Now().UTC()).Seconds(),
		"observations":    observations,
	})
}
