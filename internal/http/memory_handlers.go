package http

import (
	"encoding/json"
	"net/http"

	"github.com/roelfdiedericks/ctxproxy/internal/memory"
)

type addMemoryRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "memory subsystem is disabled", "memory_unavailable")
		return
	}

	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "client_validation")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required", "client_validation")
		return
	}

	id, err := s.retriever.AddMemory(r.Context(), req.Text, req.Metadata)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "memory_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type searchMemoryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// handleSearchMemory searches stored memories. By default it searches
// by vector/cosine similarity; ?mode=keyword switches to the FTS5 BM25
// auxiliary path (only available on the SQLite backend).
func (s *Server) handleSearchMemory(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "memory subsystem is disabled", "memory_unavailable")
		return
	}

	var req searchMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "client_validation")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required", "client_validation")
		return
	}

	var results []memory.Result
	var err error
	if r.URL.Query().Get("mode") == "keyword" {
		results, err = s.retriever.SearchKeyword(r.Context(), req.Query, req.TopK)
		if err == memory.ErrKeywordSearchUnsupported {
			writeError(w, http.StatusBadRequest, err.Error(), "client_validation")
			return
		}
	} else {
		results, err = s.retriever.Retrieve(r.Context(), req.Query, req.TopK, true)
	}
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "memory_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "memory subsystem is disabled", "memory_unavailable")
		return
	}

	id := r.PathValue("id")
	deleted, err := s.retriever.DeleteMemory(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "memory_unavailable")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "unknown memory id: "+id, "client_validation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, r *http.Request) {
	if s.retriever == nil {
		writeError(w, http.StatusServiceUnavailable, "memory subsystem is disabled", "memory_unavailable")
		return
	}
	if err := s.retriever.ClearMemory(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "memory_unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
