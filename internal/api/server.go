// Package api exposes the tracking engine over HTTP: pass prediction,
// batch tracking, live streams, TLE metadata, and operational endpoints.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/AstarAeroespacial/rustar-tracking/internal/auth"
	"github.com/AstarAeroespacial/rustar-tracking/internal/health"
	"github.com/AstarAeroespacial/rustar-tracking/internal/metrics"
	"github.com/AstarAeroespacial/rustar-tracking/internal/tle"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	Store  *tle.Store
	Stream http.Handler
	Auth   auth.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	store      *tle.Store
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	s := &Server{
		store:  deps.Store,
		logger: logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return deps.Store.Get() != nil
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/tle/metadata", s.handleTLEMetadata)
	mux.HandleFunc("GET /api/v1/passes", s.handlePasses)
	mux.HandleFunc("GET /api/v1/track", s.handleTrack)
	if deps.Stream != nil {
		mux.Handle("GET /api/v1/track/stream", deps.Stream)
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// Streams manage their own deadlines via ResponseController.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Flush passes through so SSE handlers behind the middleware still stream.
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", r.RemoteAddr,
			)
		})
	}
}
