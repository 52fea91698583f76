package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/AstarAeroespacial/rustar-tracking/internal/api"
	"github.com/AstarAeroespacial/rustar-tracking/internal/auth"
	"github.com/AstarAeroespacial/rustar-tracking/internal/metrics"
	"github.com/AstarAeroespacial/rustar-tracking/internal/stream"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
)

func main() {
	// A missing .env file is fine; the environment takes precedence anyway.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("RUSTAR_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	store := tle.NewStore()
	tleCache := tle.NewCache(tleCfg.CacheDir, tleCfg.MaxFiles)
	fetcher := tle.NewFetcher(tleCfg.SourceURL, logger, tleCfg.ExtraSourceURLs...)

	// Attempt to load cached TLE data on startup. Fresh cache avoids a fetch;
	// stale cache is still better than nothing until the first refresh lands.
	data, ts, err := tleCache.LoadFresh(tleCfg.MaxAge)
	if err != nil {
		data, ts, err = tleCache.LoadLatest()
	}
	if err != nil {
		logger.Info("no TLE cache found, starting without TLE data", "error", err)
	} else {
		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil {
			logger.Warn("failed to parse cached TLE data", "error", err)
		} else if len(entries) > 0 {
			store.Set(tle.NewDataset("cache", ts, entries))
			metrics.SetTLEDatasetCount(len(entries))
			logger.Info("loaded TLE data from cache", "count", len(entries), "cached_at", ts.Format(time.RFC3339))
		}
	}

	streamOpts := loadStreamOptions(logger)
	streamHandler := stream.NewHandler(store, streamOpts, logger)

	srv := api.NewServer(addr, logger, api.Deps{
		Store:  store,
		Stream: streamHandler,
		Auth:   authCfg,
	})

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if tleCfg.EnableFetch {
		go refreshTLE(ctx, fetcher, tleCache, store, tleCfg, logger)
	}

	// Background goroutine to update TLE dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				age := store.AgeSeconds()
				if age >= 0 {
					metrics.SetTLEDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "tle_fetch_enabled", tleCfg.EnableFetch)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// refreshTLE fetches element sets on startup (when the loaded cache is stale
// or absent) and then on a fixed interval, updating the store and cache.
func refreshTLE(ctx context.Context, fetcher *tle.Fetcher, cache *tle.Cache, store *tle.Store, cfg tleConfig, logger *slog.Logger) {
	refresh := func() {
		fetchCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
		defer cancel()

		data, err := fetcher.Fetch(fetchCtx)
		if err != nil {
			logger.Warn("TLE fetch failed", "error", err)
			return
		}
		entries, err := tle.Parse(bytes.NewReader(data), logger)
		if err != nil || len(entries) == 0 {
			logger.Warn("fetched TLE data unusable", "error", err, "count", len(entries))
			return
		}

		now := time.Now().UTC()
		store.Set(tle.NewDataset(fetcher.SourceURL(), now, entries))
		metrics.SetTLEDatasetCount(len(entries))
		metrics.SetTLEDatasetAge(0)
		if err := cache.Write(data, now); err != nil {
			logger.Warn("failed to write TLE cache", "error", err)
		}
		logger.Info("TLE dataset refreshed", "count", len(entries))
	}

	if ds := store.Get(); ds == nil || time.Since(ds.FetchedAt) > cfg.MaxAge {
		refresh()
	}

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("RUSTAR_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("RUSTAR_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("RUSTAR_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("RUSTAR_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

type tleConfig struct {
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
	RefreshInterval time.Duration
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		EnableFetch:     true,
		CacheDir:        "/tmp/rustar/tle",
		MaxFiles:        5,
		MaxAge:          24 * time.Hour,
		RefreshInterval: 6 * time.Hour,
		ExtraSourceURLs: []string{
			// ISS (NORAD 25544), always in the working set even if the group feed drops it.
			"https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle",
		},
	}

	if v := os.Getenv("RUSTAR_ENABLE_TLE_FETCH"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid RUSTAR_ENABLE_TLE_FETCH value, defaulting to true", "value", v)
		} else {
			cfg.EnableFetch = enabled
		}
	}

	if v := os.Getenv("RUSTAR_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}

	if v := os.Getenv("RUSTAR_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("RUSTAR_TLE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_TLE_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("RUSTAR_TLE_MAX_AGE_HOURS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_TLE_MAX_AGE_HOURS value, using default", "value", v, "default", 24)
		} else {
			cfg.MaxAge = time.Duration(n) * time.Hour
		}
	}

	if v := os.Getenv("RUSTAR_TLE_REFRESH_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_TLE_REFRESH_INTERVAL value, using default", "value", v, "default", 21600)
		} else {
			cfg.RefreshInterval = time.Duration(n) * time.Second
		}
	}

	logger.Info("TLE config",
		"enable_fetch", cfg.EnableFetch,
		"cache_dir", cfg.CacheDir,
		"max_files", cfg.MaxFiles,
		"max_age_hours", cfg.MaxAge.Hours(),
		"refresh_interval_seconds", cfg.RefreshInterval.Seconds(),
	)

	return cfg
}

func loadStreamOptions(logger *slog.Logger) stream.Options {
	opts := stream.Options{
		MaxPerIP:  4,
		MaxTotal:  1000,
		Keepalive: 15 * time.Second,
		Cadence:   1 * time.Second,
	}

	if v := os.Getenv("RUSTAR_STREAM_MAX_PER_IP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_STREAM_MAX_PER_IP value, using default", "value", v, "default", 4)
		} else {
			opts.MaxPerIP = n
		}
	}

	if v := os.Getenv("RUSTAR_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			opts.MaxTotal = n
		}
	}

	if v := os.Getenv("RUSTAR_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid RUSTAR_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 15)
		} else {
			opts.Keepalive = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("RUSTAR_STREAM_CADENCE_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 100 {
			logger.Warn("invalid RUSTAR_STREAM_CADENCE_MS value, using default", "value", v, "default", 1000)
		} else {
			opts.Cadence = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("RUSTAR_TRUST_PROXY"); v != "" {
		trust, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid RUSTAR_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			opts.TrustProxy = trust
		}
	}

	logger.Info("stream config",
		"max_per_ip", opts.MaxPerIP,
		"max_total", opts.MaxTotal,
		"keepalive_seconds", opts.Keepalive.Seconds(),
		"cadence_ms", opts.Cadence.Milliseconds(),
		"trust_proxy", opts.TrustProxy,
	)

	return opts
}
