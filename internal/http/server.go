// Package http exposes the chat-completion, operational, and
// management HTTP surface in front of a pipeline.Pipeline.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roelfdiedericks/ctxproxy/internal/breaker"
	"github.com/roelfdiedericks/ctxproxy/internal/memory"
	"github.com/roelfdiedericks/ctxproxy/internal/metrics"
	"github.com/roelfdiedericks/ctxproxy/internal/pipeline"
	"github.com/roelfdiedericks/ctxproxy/internal/providers"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Server is the HTTP front end for a single Pipeline.
type Server struct {
	server      *http.Server
	pipeline    *pipeline.Pipeline
	registry    *providers.Registry
	breakers    *breaker.Registry
	retriever   *memory.Retriever // nil disables the /memory management surface
	analyzer    *metrics.Analyzer
	rateLimiter *RateLimiter
	wg          sync.WaitGroup
}

// Config holds HTTP server settings.
type Config struct {
	Listen string // e.g. ":8080"
}

// Deps are the Server's collaborators. Retriever may be nil.
type Deps struct {
	Pipeline  *pipeline.Pipeline
	Registry  *providers.Registry
	Breakers  *breaker.Registry
	Retriever *memory.Retriever
	Analyzer  *metrics.Analyzer
}

// NewServer builds a Server with its route table wired.
func NewServer(cfg Config, deps Deps) *Server {
	s := &Server{
		pipeline:    deps.Pipeline,
		registry:    deps.Registry,
		breakers:    deps.Breakers,
		retriever:   deps.Retriever,
		analyzer:    deps.Analyzer,
		rateLimiter: NewRateLimiter(10 * time.Second),
	}

	s.server = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // unbounded: streaming responses must not be cut off
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes wires the full mux. Middleware chain: logging -> strip
// fingerprinting headers -> rate limit.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return s.logRequest(s.stripHeaders(s.rateLimit(h)))
	}

	mux.HandleFunc("POST /v1/chat/completions", wrap(s.handleChatCompletions))
	mux.HandleFunc("GET /health", wrap(s.handleHealth))
	mux.HandleFunc("GET /ready", wrap(s.handleReady))
	mux.Handle("GET /metrics", wrap(func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	}))
	mux.HandleFunc("GET /traffic/stats", wrap(s.handleTrafficStats))
	mux.HandleFunc("GET /traffic/recent", wrap(s.handleTrafficRecent))
	mux.HandleFunc("GET /traffic/stream", wrap(s.handleTrafficStream))

	mux.HandleFunc("GET /config/providers", wrap(s.handleListProviders))
	mux.HandleFunc("POST /config/providers", wrap(s.handleCreateProvider))
	mux.HandleFunc("PATCH /config/providers/{id}", wrap(s.handleUpdateProvider))
	mux.HandleFunc("DELETE /config/providers/{id}", wrap(s.handleDeleteProvider))
	mux.HandleFunc("GET /config/providers/templates", wrap(s.handleListTemplates))
	mux.HandleFunc("POST /config/providers/from-template", wrap(s.handleCreateProviderFromTemplate))
	mux.HandleFunc("POST /config/providers/{id}/default", wrap(s.handleSetDefaultProvider))

	mux.HandleFunc("GET /config/circuit-breakers", wrap(s.handleListBreakers))
	mux.HandleFunc("GET /config/circuit-breakers/{name}", wrap(s.handleGetBreaker))
	mux.HandleFunc("POST /config/circuit-breakers/{name}/reset", wrap(s.handleResetBreaker))
	mux.HandleFunc("POST /config/circuit-breakers/reset-all", wrap(s.handleResetAllBreakers))

	mux.HandleFunc("POST /memory/add", wrap(s.handleAddMemory))
	mux.HandleFunc("POST /memory/search", wrap(s.handleSearchMemory))
	mux.HandleFunc("DELETE /memory/{id}", wrap(s.handleDeleteMemory))
	mux.HandleFunc("DELETE /memory", wrap(s.handleClearMemory))

	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		L_info("http: server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			L_error("http: server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		L_error("http: shutdown error", "error", err)
		return err
	}
	s.wg.Wait()
	L_info("http: server stopped")
	return nil
}

// logRequest wraps a handler to log method, path, status, and duration.
func (s *Server) logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(lw, r)

		L_trace("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.statusCode,
			"duration", time.Since(start))
	}
}

// loggingResponseWriter wraps ResponseWriter to capture the status code
// while still supporting SSE flushing.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Flush() {
	if f, ok := lw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// stripHeaders removes headers that fingerprint the server.
func (s *Server) stripHeaders(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Del("Server")
		w.Header().Del("X-Powered-By")
		handler(w, r)
	}
}
