package degradation

import (
	"sync"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// FeatureStatus is a snapshot of a registered feature's health.
type FeatureStatus struct {
	Enabled     bool   `json:"enabled"`
	Degraded    bool   `json:"degraded"`
	LastError   string `json:"last_error,omitempty"`
	Description string `json:"description"`
}

// Manager tracks per-feature enable/disable state and degradation
// status. Unlike the Python original, the call itself runs through the
// generic Execute function in strategy.go (Go has no dynamically-typed
// operation/fallback pair); Manager only records the outcome and gates
// whether a feature is allowed to run at all.
type Manager struct {
	mu     sync.Mutex
	status map[string]*FeatureStatus
}

// NewManager returns an empty feature manager.
func NewManager() *Manager {
	return &Manager{status: make(map[string]*FeatureStatus)}
}

// Register adds a feature, enabled by default.
func (m *Manager) Register(name, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[name] = &FeatureStatus{Enabled: true, Description: description}
	L_info("degradation: feature registered", "name", name)
}

// Enabled reports whether name is registered and enabled.
func (m *Manager) Enabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[name]
	return ok && s.Enabled
}

// Enable re-enables a registered feature. Returns false if unknown.
func (m *Manager) Enable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[name]
	if !ok {
		return false
	}
	s.Enabled = true
	L_info("degradation: feature enabled", "name", name)
	return true
}

// Disable turns off a registered feature. Returns false if unknown.
func (m *Manager) Disable(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[name]
	if !ok {
		return false
	}
	s.Enabled = false
	L_info("degradation: feature disabled", "name", name)
	return true
}

// RecordSuccess clears a feature's degraded/last_error state.
func (m *Manager) RecordSuccess(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.status[name]; ok {
		s.Degraded = false
		s.LastError = ""
	}
}

// RecordFailure marks a feature degraded with the given error.
func (m *Manager) RecordFailure(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.status[name]; ok {
		s.Degraded = true
		s.LastError = err.Error()
	}
}

// IsDegraded reports whether name is disabled or degraded (or unknown).
func (m *Manager) IsDegraded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.status[name]
	if !ok {
		return true
	}
	return !s.Enabled || s.Degraded
}

// Status returns a snapshot of every registered feature, keyed by name.
func (m *Manager) Status() map[string]FeatureStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]FeatureStatus, len(m.status))
	for name, s := range m.status {
		out[name] = *s
	}
	return out
}
