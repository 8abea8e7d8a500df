package providers

import (
	"strings"
	"sync"

	. "github.com/roelfdiedericks/ctxproxy/internal/logging"
)

// Registry is a process-wide, read-mostly store of providers. Writes
// (add/remove/set_default/management API calls) take a single writer
// lock; readers may observe a stale snapshot but never a torn provider,
// per spec.md §5's shared-resource policy.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // insertion order, for get_for_model's ordered scan
	defaultID string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Add inserts or replaces a provider. If setDefault is true, or this is
// the registry's first provider, it becomes the default.
func (r *Registry) Add(p Provider, setDefault bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[p.ID]; !exists {
		r.order = append(r.order, p.ID)
	}
	r.providers[p.ID] = p
	L_info("providers: added", "provider_id", p.ID, "name", p.Name)

	if setDefault || r.defaultID == "" {
		r.defaultID = p.ID
		L_info("providers: set default", "provider_id", p.ID)
	}
}

// Remove deletes a provider by id, returning false if it did not exist.
// If the removed provider was the default, the next provider in
// insertion order (if any) becomes the new default.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[id]; !exists {
		return false
	}
	delete(r.providers, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	L_info("providers: removed", "provider_id", id)

	if r.defaultID == id {
		if len(r.order) > 0 {
			r.defaultID = r.order[0]
		} else {
			r.defaultID = ""
		}
	}
	return true
}

// Get returns the provider by id, or the default provider if id is "".
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id == "" {
		id = r.defaultID
	}
	p, ok := r.providers[id]
	return p, ok
}

// GetForModel resolves a model string to a provider per spec.md §4.7:
// an explicit "prefix:model" wins if the prefix names an enabled
// provider; otherwise the first enabled provider (in insertion order)
// whose Models list contains m; otherwise the default provider, if
// enabled.
func (r *Registry) GetForModel(m string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if idx := strings.IndexByte(m, ':'); idx >= 0 {
		prefix := m[:idx]
		if p, ok := r.providers[prefix]; ok && p.Enabled {
			return p, true
		}
	}

	for _, id := range r.order {
		p := r.providers[id]
		if !p.Enabled {
			continue
		}
		for _, model := range p.Models {
			if model == m {
				return p, true
			}
		}
	}

	if r.defaultID != "" {
		if p, ok := r.providers[r.defaultID]; ok && p.Enabled {
			return p, true
		}
	}
	return Provider{}, false
}

// List returns every provider's safe projection, in insertion order.
func (r *Registry) List() []ProviderView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderView, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.providers[id].ToView())
	}
	return out
}

// SetDefault marks id as the default provider. Returns false if id is
// unregistered.
func (r *Registry) SetDefault(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[id]; !ok {
		return false
	}
	r.defaultID = id
	L_info("providers: set default", "provider_id", id)
	return true
}

// StripModelPrefix removes a "{provider.id}:" prefix from model if
// present, per spec.md §4.6's model-prefix stripping rule.
func StripModelPrefix(model string, providerID string) string {
	prefix := providerID + ":"
	if strings.HasPrefix(model, prefix) {
		return strings.TrimPrefix(model, prefix)
	}
	return model
}
