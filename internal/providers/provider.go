// Package providers maintains the process-wide registry of upstream LLM
// provider configurations and resolves a request's model field to one of
// them.
package providers

// Provider is an upstream LLM endpoint configuration. ID is unique within
// a registry.
type Provider struct {
	ID            string
	Name          string
	BaseURL       string
	APIKey        string
	DefaultModel  string
	Models        []string
	TimeoutSec    int
	MaxRetries    int
	ContextWindow int
	Enabled       bool
	Headers       map[string]string
	ExtraBody     map[string]any
}

// DefaultTimeoutSec and DefaultMaxRetries mirror the template defaults.
// DefaultContextWindow backstops providers created without a known
// context window, so max_tokens capping always has a number to work
// with instead of silently disabling itself.
const (
	DefaultTimeoutSec    = 120
	DefaultMaxRetries    = 3
	DefaultContextWindow = 8192
)

// ProviderView is the public, API-safe projection of a Provider: api_key is
// never exposed, only whether one is set.
type ProviderView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	BaseURL       string   `json:"base_url"`
	DefaultModel  string   `json:"default_model"`
	Models        []string `json:"models"`
	TimeoutSec    int      `json:"timeout"`
	MaxRetries    int      `json:"max_retries"`
	ContextWindow int      `json:"context_window"`
	Enabled       bool     `json:"enabled"`
	HasAPIKey     bool     `json:"has_api_key"`
}

// ToView projects p without its api_key.
func (p Provider) ToView() ProviderView {
	return ProviderView{
		ID:            p.ID,
		Name:          p.Name,
		BaseURL:       p.BaseURL,
		DefaultModel:  p.DefaultModel,
		Models:        p.Models,
		TimeoutSec:    p.TimeoutSec,
		MaxRetries:    p.MaxRetries,
		ContextWindow: p.ContextWindow,
		Enabled:       p.Enabled,
		HasAPIKey:     p.APIKey != "",
	}
}
