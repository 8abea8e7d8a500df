package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roelfdiedericks/ctxproxy/internal/forward"
	"github.com/roelfdiedericks/ctxproxy/internal/pipeline"
	"github.com/roelfdiedericks/ctxproxy/internal/types"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// apiError mirrors spec.md §7's {message,type} error body shape.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message, kind string) {
	var body apiError
	body.Error.Message = message
	body.Error.Type = kind
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleChatCompletions is the sole proxy entrypoint: it dispatches to
// the pipeline's streaming or non-streaming path depending on the
// request body's stream field.
func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "client_validation")
		return
	}
	if req.Model == "" || len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "model and messages are required", "client_validation")
		return
	}

	if req.Stream {
		s.streamChatCompletion(w, r, &req)
		return
	}

	resp, err := s.pipeline.Process(r.Context(), &req)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Body)
}

// streamChatCompletion delegates to the pipeline, which only commits
// response headers once the upstream call has actually succeeded — so
// an error here always means nothing has been written to w yet.
func (s *Server) streamChatCompletion(w http.ResponseWriter, r *http.Request, req *types.ChatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported by this response writer", "internal")
		return
	}

	if err := s.pipeline.Stream(r.Context(), req, w, flusher); err != nil {
		writeChatError(w, err)
	}
}

// writeChatError maps a pipeline error onto spec.md §7's taxonomy.
func writeChatError(w http.ResponseWriter, err error) {
	if permErr, ok := err.(*forward.ErrUpstreamPermanent); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(permErr.StatusCode)
		w.Write(permErr.Body)
		return
	}
	if breakerErr, ok := err.(*pipeline.ErrBreakerOpen); ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(breakerErr.RecoveryIn.Seconds())))
		writeError(w, http.StatusServiceUnavailable, breakerErr.Error(), "breaker_open")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), "internal")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "version": Version})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleTrafficStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.GetStats())
}

func (s *Server) handleTrafficRecent(w http.ResponseWriter, r *http.Request) {
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}
	writeJSON(w, http.StatusOK, s.analyzer.Recent(n))
}
