// Package stream serves live tracking observations over Server-Sent Events.
// Each connection runs its own tracking loop against the shared TLE store and
// emits one "observation" event per cadence tick.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/httputil"
	"github.com/AstarAeroespacial/rustar-tracking/internal/metrics"
	"github.com/AstarAeroespacial/rustar-tracking/internal/propagation"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
	"github.com/AstarAeroespacial/rustar-tracking/internal/track"
	"github.com/AstarAeroespacial/rustar-tracking/internal/transform"
)

const (
	defaultKeepalive = 15 * time.Second
	retryBase        = 2 * time.Second
	retryJitter      = 3 * time.Second

	// maxStreamFailures ends the stream after this many propagation
	// failures in a row. Isolated failures skip their tick.
	maxStreamFailures = 5
)

// Options configures the SSE handler.
type Options struct {
	MaxPerIP   int
	MaxTotal   int
	TrustProxy bool
	Keepalive  time.Duration
	Cadence    time.Duration
}

// Handler streams live tracking observations for one satellite per connection.
type Handler struct {
	store   *tle.Store
	limiter *streamLimiter
	opts    Options
	logger  *slog.Logger
}

// NewHandler creates the SSE tracking handler.
func NewHandler(store *tle.Store, opts Options, logger *slog.Logger) *Handler {
	if opts.MaxPerIP <= 0 {
		opts.MaxPerIP = 4
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = defaultKeepalive
	}
	if opts.Cadence <= 0 {
		opts.Cadence = track.DefaultCadence
	}
	return &Handler{
		store:   store,
		limiter: newStreamLimiter(opts.MaxPerIP, opts.MaxTotal),
		opts:    opts,
		logger:  logger,
	}
}

// streamParams are the per-connection tracking parameters from the query string.
type streamParams struct {
	noradID         int
	observer        transform.ObserverPosition
	freqTxHz        float64
	uplinkTxHz      float64
	minElevationDeg float64
}

func parseStreamParams(r *http.Request) (streamParams, error) {
	q := r.URL.Query()
	var p streamParams

	noradID, err := strconv.Atoi(q.Get("norad_id"))
	if err != nil || noradID <= 0 {
		return p, fmt.Errorf("norad_id must be a positive integer")
	}
	p.noradID = noradID

	lat, err := parseFloatParam(q.Get("lat"), -90, 90)
	if err != nil {
		return p, fmt.Errorf("lat: %w", err)
	}
	lon, err := parseFloatParam(q.Get("lon"), -180, 180)
	if err != nil {
		return p, fmt.Errorf("lon: %w", err)
	}
	alt := 0.0
	if s := q.Get("alt"); s != "" {
		alt, err = parseFloatParam(s, -500, 9000)
		if err != nil {
			return p, fmt.Errorf("alt: %w", err)
		}
	}
	p.observer = transform.NewObserverPosition(lat, lon, alt)

	p.freqTxHz, err = parseFloatParam(q.Get("freq_hz"), 1, 1e12)
	if err != nil {
		return p, fmt.Errorf("freq_hz: %w", err)
	}
	if s := q.Get("uplink_hz"); s != "" {
		p.uplinkTxHz, err = parseFloatParam(s, 1, 1e12)
		if err != nil {
			return p, fmt.Errorf("uplink_hz: %w", err)
		}
	}
	if s := q.Get("min_elevation"); s != "" {
		p.minElevationDeg, err = parseFloatParam(s, 0, 90)
		if err != nil {
			return p, fmt.Errorf("min_elevation: %w", err)
		}
	}
	return p, nil
}

func parseFloatParam(s string, min, max float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if v < min || v > max {
		return 0, fmt.Errorf("%v outside [%v, %v]", v, min, max)
	}
	return v, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := httputil.ClientIP(r, h.opts.TrustProxy)

	if !h.limiter.acquire(ip) {
		metrics.IncStreamConnections("rejected")
		http.Error(w, "too many concurrent streams", http.StatusTooManyRequests)
		return
	}
	defer h.limiter.release(ip)

	params, err := parseStreamParams(r)
	if err != nil {
		metrics.IncStreamConnections("rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	entry, ok := h.store.Entry(params.noradID)
	if !ok {
		metrics.IncStreamConnections("rejected")
		http.Error(w, "unknown satellite", http.StatusNotFound)
		return
	}

	src, err := propagation.NewSGP4Source(entry.Line1, entry.Line2, entry.NORADID)
	if err != nil {
		metrics.IncStreamConnections("rejected")
		http.Error(w, "invalid element set", http.StatusUnprocessableEntity)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		metrics.IncStreamErrors("no_flusher")
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		ip:      ip,
		logger:  h.logger,
	}

	metrics.IncStreamConnections("accepted")
	metrics.IncStreamsActive()
	defer metrics.DecStreamsActive()

	h.logger.Info("stream opened",
		"component", "stream",
		"remote_ip", ip,
		"norad_id", params.noradID,
	)
	defer func() {
		h.logger.Info("stream closed",
			"component", "stream",
			"remote_ip", ip,
			"norad_id", params.noradID,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
		)
	}()

	// Jittered reconnect delay so a fleet of clients does not reconnect in lockstep.
	if err := c.sendRetry(retryBase + time.Duration(rand.Int63n(int64(retryJitter)))); err != nil {
		return
	}

	tracker := track.NewTracker(src, params.observer, track.Config{
		FreqTxHz:   params.freqTxHz,
		UplinkTxHz: params.uplinkTxHz,
	}, h.logger)

	ticker := time.NewTicker(h.opts.Cadence)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.opts.Keepalive)
	defer keepalive.Stop()

	ctx := r.Context()
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("write")
				return
			}

		case <-ticker.C:
			obs, err := tracker.ObserveAt(time.Now())
			if err != nil {
				failures++
				metrics.IncStreamErrors("propagation")
				var propErr *propagation.PropagationError
				if errors.As(err, &propErr) {
					h.logger.Warn("stream tick dropped",
						"component", "stream",
						"norad_id", propErr.NORADID,
						"error", err,
					)
				}
				if failures >= maxStreamFailures {
					c.sendEvent("error", map[string]string{"error": "propagation failing, closing stream"})
					return
				}
				continue
			}
			failures = 0

			if params.minElevationDeg > 0 && obs.ElevationDeg < params.minElevationDeg {
				// Below the horizon of interest: keep the connection but skip the event.
				continue
			}

			if err := c.sendEvent("observation", obs); err != nil {
				metrics.IncStreamErrors("write")
				return
			}
		}
	}
}
