// Command track predicts the next pass of a satellite over a ground station
// and writes the Doppler-corrected tracking schedule for it: an observation
// CSV, a pass summary CSV, a JSON run report, and optionally a GeoJSON ground
// track.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AstarAeroespacial/rustar-tracking/internal/export"
	"github.com/AstarAeroespacial/rustar-tracking/internal/freq"
	"github.com/AstarAeroespacial/rustar-tracking/internal/passes"
	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

type options struct {
	sat         string
	tlePath     string
	lat         float64
	lon         float64
	alt         float64
	minElev     float64
	freqHz      float64
	uplinkHz    float64
	hours       float64
	cadenceS    float64
	outDir      string
	groundTrack bool
	offline     bool
	satnogsURL  string
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var opts options
	flag.StringVar(&opts.sat, "sat", "", "satellite: NORAD ID or a known name (e.g. ISS, AO-91)")
	flag.StringVar(&opts.tlePath, "tle", "", "path to a local TLE file (skips the network fetch)")
	flag.Float64Var(&opts.lat, "lat", 0, "observer latitude in degrees")
	flag.Float64Var(&opts.lon, "lon", 0, "observer longitude in degrees")
	flag.Float64Var(&opts.alt, "alt", 0, "observer altitude in meters")
	flag.Float64Var(&opts.minElev, "min-elevation", 10, "pass threshold elevation in degrees")
	flag.Float64Var(&opts.freqHz, "freq", 0, "downlink frequency in Hz (0 resolves from SatNOGS)")
	flag.Float64Var(&opts.uplinkHz, "uplink", 0, "uplink frequency in Hz (0 resolves from SatNOGS)")
	flag.Float64Var(&opts.hours, "hours", 24, "pass search horizon in hours")
	flag.Float64Var(&opts.cadenceS, "cadence", 1, "tracking cadence in seconds")
	flag.StringVar(&opts.outDir, "out", ".", "output directory")
	flag.BoolVar(&opts.groundTrack, "ground-track", false, "also write a GeoJSON ground track")
	flag.BoolVar(&opts.offline, "offline", false, "never touch the network (requires -tle, uses the built-in frequency table)")
	flag.StringVar(&opts.satnogsURL, "satnogs-url", "", "SatNOGS DB base URL override")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("track failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *slog.Logger) error {
	if opts.sat == "" {
		return fmt.Errorf("-sat is required")
	}
	if opts.lat < -90 || opts.lat > 90 || opts.lon < -180 || opts.lon > 180 {
		return fmt.Errorf("observer coordinates out of range")
	}

	noradID, err := resolveSatellite(opts.sat)
	if err != nil {
		return err
	}

	entry, err := loadElements(ctx, opts, noradID, logger)
	if err != nil {
		return err
	}
	tleAge := entry.Age(time.Now().UTC())
	logger.Info("element set loaded",
		"norad_id", entry.NORADID,
		"name", entry.Name,
		"epoch", entry.Epoch.Format(time.RFC3339),
		"age_hours", fmt.Sprintf("%.1f", tleAge.Hours()),
	)
	if tleAge > 7*24*time.Hour {
		logger.Warn("element set is over a week old, Doppler accuracy will suffer")
	}

	freqHz, uplinkHz, err := resolveFrequencies(ctx, opts, noradID, logger)
	if err != nil {
		return err
	}
	logger.Info("frequencies", "downlink_hz", freqHz, "uplink_hz", uplinkHz)

	src, err := propagation.NewSGP4Source(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		return fmt.Errorf("initializing propagator: %w", err)
	}
	observer := transform.NewObserverPosition(opts.lat, opts.lon, opts.alt)

	predictor := passes.NewPredictor(src, observer, passes.Config{
		MinElevationDeg: opts.minElev,
		WithGroundTrack: opts.groundTrack,
	}, logger)

	now := time.Now().UTC()
	pass, err := predictor.Next(ctx, now, now.Add(time.Duration(opts.hours*float64(time.Hour))))
	if err != nil {
		return fmt.Errorf("predicting pass: %w", err)
	}
	if pass == nil {
		fmt.Printf("no pass above %.1f° within the next %.1f hours\n", opts.minElev, opts.hours)
		return nil
	}

	fmt.Printf("next pass: AOS %s az %.1f°, max elevation %.1f° at %s, LOS %s az %.1f° (%.0fs)\n",
		pass.AOS.Format(time.RFC3339), pass.AOSAzimuthDeg,
		pass.MaxElevationDeg, pass.MaxElevationTime.Format(time.RFC3339),
		pass.LOS.Format(time.RFC3339), pass.LOSAzimuthDeg,
		pass.DurationSeconds,
	)

	cfg := track.Config{
		FreqTxHz:        freqHz,
		UplinkTxHz:      uplinkHz,
		Cadence:         time.Duration(opts.cadenceS * float64(time.Second)),
		RangeRateStep:   track.DefaultRangeRateStep,
		MinElevationDeg: opts.minElev,
	}
	tracker := track.NewTracker(src, observer, cfg, logger)
	observations, err := tracker.Run(ctx, pass.AOS, pass.LOS)
	if err != nil {
		return fmt.Errorf("tracking pass: %w", err)
	}
	logger.Info("tracking complete", "observations", len(observations))

	return writeOutputs(opts, entry, tleAge, cfg, pass, observations, logger)
}

// resolveSatellite accepts a bare NORAD ID or a known satellite name.
func resolveSatellite(sat string) (int, error) {
	if id, err := strconv.Atoi(sat); err == nil {
		if id <= 0 {
			return 0, fmt.Errorf("NORAD ID must be positive")
		}
		return id, nil
	}
	if id, ok := tle.ResolveName(sat); ok {
		return id, nil
	}
	return 0, fmt.Errorf("unknown satellite %q (use a NORAD ID)", sat)
}

// loadElements reads the TLE from a local file or fetches the single-satellite
// catalog entry from CelesTrak.
func loadElements(ctx context.Context, opts options, noradID int, logger *slog.Logger) (tle.TLEEntry, error) {
	if opts.tlePath != "" {
		data, err := os.ReadFile(opts.tlePath)
		if err != nil {
			return tle.TLEEntry{}, fmt.Errorf("reading TLE file: %w", err)
		}
		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil {
			return tle.TLEEntry{}, fmt.Errorf("parsing TLE file: %w", err)
		}
		for _, e := range entries {
			if e.NORADID == noradID {
				return e, nil
			}
		}
		return tle.TLEEntry{}, fmt.Errorf("NORAD %d not found in %s", noradID, opts.tlePath)
	}

	if opts.offline {
		return tle.TLEEntry{}, fmt.Errorf("-offline requires -tle")
	}

	fetcher := tle.NewFetcher("", logger)
	data, err := fetcher.FetchCatalog(ctx, noradID)
	if err != nil {
		return tle.TLEEntry{}, fmt.Errorf("fetching elements: %w", err)
	}
	entries, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil || len(entries) == 0 {
		return tle.TLEEntry{}, fmt.Errorf("no usable elements for NORAD %d: %w", noradID, err)
	}
	return entries[0], nil
}

// resolveFrequencies fills in whichever of downlink/uplink the flags left at
// zero, from SatNOGS or the built-in table.
func resolveFrequencies(ctx context.Context, opts options, noradID int, logger *slog.Logger) (float64, float64, error) {
	if opts.freqHz > 0 {
		return opts.freqHz, opts.uplinkHz, nil
	}

	var client *freq.Client
	if !opts.offline {
		client = freq.NewClient(opts.satnogsURL, logger)
	}
	tx, err := client.Resolve(ctx, noradID)
	if err != nil {
		return 0, 0, fmt.Errorf("resolving frequency (use -freq to set it explicitly): %w", err)
	}
	uplink := opts.uplinkHz
	if uplink == 0 {
		uplink = tx.UplinkHz
	}
	logger.Info("transmitter", "name", tx.Name, "mode", tx.Mode)
	return tx.DownlinkHz, uplink, nil
}

func writeOutputs(opts options, entry tle.TLEEntry, tleAge time.Duration, cfg track.Config, pass *passes.Pass, observations []track.Observation, logger *slog.Logger) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	prefix := fmt.Sprintf("track_%d_%s", entry.NORADID, pass.AOS.UTC().Format("20060102T150405Z"))

	writeFile := func(name string, write func(*os.File) error) error {
		path := filepath.Join(opts.outDir, name)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
		defer f.Close()
		if err := write(f); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		logger.Info("wrote", "path", path)
		return nil
	}

	if err := writeFile(prefix+"_observations.csv", func(f *os.File) error {
		return export.WriteObservationsCSV(f, observations)
	}); err != nil {
		return err
	}

	if err := writeFile(prefix+"_pass.csv", func(f *os.File) error {
		return export.WritePassSummaryCSV(f, *pass)
	}); err != nil {
		return err
	}

	report := export.NewReport(
		export.SatelliteInfo{NORADID: entry.NORADID, Name: entry.Name},
		export.ObserverInfo{LatDeg: opts.lat, LonDeg: opts.lon, AltM: opts.alt, MinElevationDeg: opts.minElev},
		cfg, pass, observations,
	)
	report.TLEAgeSeconds = tleAge.Seconds()
	if err := writeFile(prefix+"_report.json", func(f *os.File) error {
		return report.WriteJSON(f)
	}); err != nil {
		return err
	}

	if opts.groundTrack && len(pass.GroundTrack) > 0 {
		if err := writeFile(prefix+"_groundtrack.geojson", func(f *os.File) error {
			data, err := export.GroundTrackGeoJSON(*pass)
			if err != nil {
				return err
			}
			_, err = f.Write(data)
			return err
		}); err != nil {
			return err
		}
	}

	return nil
}
