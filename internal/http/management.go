package http

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/roelfdiedericks/ctxproxy/internal/providers"
)

// providerRequest is the wire shape accepted by POST/PATCH
// /config/providers; fields left absent keep their existing value on
// update, or the zero value on create.
type providerRequest struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	BaseURL       string            `json:"base_url"`
	APIKey        string            `json:"api_key"`
	DefaultModel  string            `json:"default_model"`
	Models        []string          `json:"models"`
	TimeoutSec    int               `json:"timeout"`
	MaxRetries    int               `json:"max_retries"`
	ContextWindow int               `json:"context_window"`
	Enabled       *bool             `json:"enabled"`
	Headers       map[string]string `json:"headers"`
	ExtraBody     map[string]any    `json:"extra_body"`
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed provider body: "+err.Error(), "client_validation")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required", "client_validation")
		return
	}
	if !isWellFormedAbsoluteURL(req.BaseURL) {
		writeError(w, http.StatusBadRequest, "base_url must be a well-formed absolute URL", "client_validation")
		return
	}

	p := providers.Provider{
		ID: req.ID, Name: req.Name, BaseURL: req.BaseURL, APIKey: req.APIKey,
		DefaultModel: req.DefaultModel, Models: req.Models,
		TimeoutSec: req.TimeoutSec, MaxRetries: req.MaxRetries, ContextWindow: req.ContextWindow,
		Enabled: req.Enabled != nil && *req.Enabled, Headers: req.Headers, ExtraBody: req.ExtraBody,
	}
	if p.TimeoutSec == 0 {
		p.TimeoutSec = providers.DefaultTimeoutSec
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = providers.DefaultMaxRetries
	}
	if p.ContextWindow == 0 {
		p.ContextWindow = providers.DefaultContextWindow
	}

	s.registry.Add(p, false)
	writeJSON(w, http.StatusOK, p.ToView())
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider: "+id, "client_validation")
		return
	}

	var req providerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed provider body: "+err.Error(), "client_validation")
		return
	}
	if req.BaseURL != "" {
		if !isWellFormedAbsoluteURL(req.BaseURL) {
			writeError(w, http.StatusBadRequest, "base_url must be a well-formed absolute URL", "client_validation")
			return
		}
		existing.BaseURL = req.BaseURL
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.APIKey != "" {
		existing.APIKey = req.APIKey
	}
	if req.DefaultModel != "" {
		existing.DefaultModel = req.DefaultModel
	}
	if req.Models != nil {
		existing.Models = req.Models
	}
	if req.TimeoutSec != 0 {
		existing.TimeoutSec = req.TimeoutSec
	}
	if req.MaxRetries != 0 {
		existing.MaxRetries = req.MaxRetries
	}
	if req.ContextWindow != 0 {
		existing.ContextWindow = req.ContextWindow
	}
	if req.Headers != nil {
		existing.Headers = req.Headers
	}
	if req.ExtraBody != nil {
		existing.ExtraBody = req.ExtraBody
	}
	if req.Enabled != nil {
		existing.Enabled = *req.Enabled
	}

	s.registry.Add(existing, false)
	writeJSON(w, http.StatusOK, existing.ToView())
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.registry.Remove(id) {
		writeError(w, http.StatusNotFound, "unknown provider: "+id, "client_validation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, providers.ListTemplates())
}

type createFromTemplateRequest struct {
	TemplateID string             `json:"template_id"`
	ProviderID string             `json:"provider_id"`
	APIKey     string             `json:"api_key"`
	Overrides  providers.Overrides `json:"overrides"`
}

func (s *Server) handleCreateProviderFromTemplate(w http.ResponseWriter, r *http.Request) {
	var req createFromTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error(), "client_validation")
		return
	}

	p, ok := providers.CreateFromTemplate(req.TemplateID, req.ProviderID, req.APIKey, req.Overrides)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown template: "+req.TemplateID, "client_validation")
		return
	}

	s.registry.Add(p, false)
	writeJSON(w, http.StatusOK, p.ToView())
}

func (s *Server) handleSetDefaultProvider(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.registry.SetDefault(id) {
		writeError(w, http.StatusNotFound, "unknown provider: "+id, "client_validation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.breakers.ListAll())
}

func (s *Server) handleGetBreaker(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b, ok := s.breakers.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown circuit breaker: "+name, "client_validation")
		return
	}
	writeJSON(w, http.StatusOK, b.StatsSnapshot())
}

func (s *Server) handleResetBreaker(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	b, ok := s.breakers.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown circuit breaker: "+name, "client_validation")
		return
	}
	b.Reset()
	writeJSON(w, http.StatusOK, b.StatsSnapshot())
}

func (s *Server) handleResetAllBreakers(w http.ResponseWriter, r *http.Request) {
	s.breakers.ResetAll()
	writeJSON(w, http.StatusOK, s.breakers.ListAll())
}

// isWellFormedAbsoluteURL rejects empty, relative, and scheme-less
// base_url values, per the management API's provider CRUD contract.
func isWellFormedAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}
