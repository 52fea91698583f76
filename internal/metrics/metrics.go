package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustar_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rustar_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	trackTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustar_track_ticks_total",
			Help: "Tracking loop ticks by result (ok, propagation_error).",
		},
		[]string{"result"},
	)

	passPredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustar_pass_predictions_total",
			Help: "Pass prediction requests by outcome (ok, no_pass, error).",
		},
		[]string{"result"},
	)

	tleDatasetAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustar_tle_dataset_age_seconds",
			Help: "Age of the current TLE dataset in seconds.",
		},
	)

	tleDatasetCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustar_tle_dataset_satellites",
			Help: "Number of satellites in the current TLE dataset.",
		},
	)

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustar_stream_connections_total",
			Help: "SSE stream connection events (connect, disconnect).",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rustar_streams_active",
			Help: "Currently connected SSE streams.",
		},
	)

	streamMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rustar_stream_messages_total",
			Help: "SSE data messages sent.",
		},
	)

	streamBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rustar_stream_bytes_total",
			Help: "Bytes written to SSE streams.",
		},
	)

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rustar_stream_errors_total",
			Help: "SSE stream errors by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		trackTicksTotal,
		passPredictionsTotal,
		tleDatasetAge,
		tleDatasetCount,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncTrackTicks counts one tracking-loop tick with the given result.
func IncTrackTicks(result string) {
	trackTicksTotal.WithLabelValues(result).Inc()
}

// IncPassPredictions counts one per-satellite pass prediction outcome.
func IncPassPredictions(result string) {
	passPredictionsTotal.WithLabelValues(result).Inc()
}

// SetTLEDatasetAge updates the TLE dataset age gauge.
func SetTLEDatasetAge(seconds float64) {
	tleDatasetAge.Set(seconds)
}

// SetTLEDatasetCount updates the TLE dataset size gauge.
func SetTLEDatasetCount(n int) {
	tleDatasetCount.Set(float64(n))
}

// IncStreamConnections counts a stream connect/disconnect event.
func IncStreamConnections(event string) {
	streamConnectionsTotal.WithLabelValues(event).Inc()
}

// IncStreamsActive increments the active-streams gauge.
func IncStreamsActive() { streamsActive.Inc() }

// DecStreamsActive decrements the active-streams gauge.
func DecStreamsActive() { streamsActive.Dec() }

// IncStreamMessages counts one SSE data message.
func IncStreamMessages() { streamMessagesTotal.Inc() }

// AddStreamBytes adds to the SSE bytes counter.
func AddStreamBytes(n int64) { streamBytesTotal.Add(float64(n)) }

// IncStreamErrors counts one SSE error of the given kind.
func IncStreamErrors(kind string) {
	streamErrorsTotal.WithLabelValues(kind).Inc()
}

// knownRoutes are the paths served by the API; anything else is labeled
// "other" so scanners and bots cannot inflate label cardinality.
var knownRoutes = map[string]bool{
	"/healthz":             true,
	"/readyz":              true,
	"/metrics":             true,
	"/api/v1/tle/metadata": true,
	"/api/v1/passes":       true,
	"/api/v1/track":        true,
	"/api/v1/track/stream": true,
}

// normalizeRoute maps a request path to a bounded set of metric labels.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers behind the middleware still stream.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
