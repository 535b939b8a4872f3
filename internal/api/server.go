package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/loomline/loomline/internal/storage"
)

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server is the HTTP boundary of the persistence engine. The editor
// frontend is the intended caller; the server itself holds no graph
// state beyond the session it fronts.
type Server struct {
	session     *storage.Session
	dataDir     string
	mux         *http.ServeMux
	server      *http.Server
	saveLimiter *rate.Limiter
}

// NewServer creates a Server wired to the given session. dataDir is the
// directory the catalog endpoint scans and relative switch targets
// resolve against.
func NewServer(session *storage.Session, dataDir string, saveRate float64, saveBurst int) *Server {
	s := &Server{
		session: session,
		dataDir: dataDir,
		mux:     http.NewServeMux(),
	}

	// Rate limiter for the save endpoint. Per-server (not per-IP); a
	// local editor autosaving aggressively is the only expected abuser.
	s.saveLimiter = rate.NewLimiter(rate.Limit(saveRate), saveBurst)

	return s
}

// RegisterRoutes wires up every API endpoint.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("GET /api/graph", s.handleLoadGraph)
	s.mux.HandleFunc("POST /api/graph",
		s.withRateLimit(s.saveLimiter, s.handleSaveGraph))

	s.mux.HandleFunc("POST /api/session/file", s.handleSwitchFile)
	s.mux.HandleFunc("GET /api/session", s.handleSessionInfo)

	s.mux.HandleFunc("GET /api/graphs", s.handleListGraphs)

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the fully-wrapped http.Handler (middleware chain + mux).
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = recoveryMiddleware(h)
	h = loggingMiddleware(h)
	h = corsMiddleware(h)
	return h
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "loomline",
	})
}

// ---------------------------------------------------------------------------
// JSON response helpers
// ---------------------------------------------------------------------------

// writeJSON writes an arbitrary value as JSON with the given HTTP status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a standardised JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  code,
	})
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware allows requests from localhost dev servers (the editor
// frontend runs on its own port during development).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseRecorder captures the status code written by downstream handlers.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs method, path, duration and status code.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware catches panics and returns a 500 response.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				slog.Error("panic recovered",
					"error", err,
					"stack", string(stack),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprintf(w, `{"error":"internal server error"}`)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit wraps a handler with a token-bucket rate limiter.
// Returns 429 when the limiter is exhausted.
func (s *Server) withRateLimit(limiter *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"error":"rate limit exceeded","retry_after_ms":1000}`)
			slog.Warn("rate limit exceeded",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)
			return
		}
		next(w, r)
	}
}
