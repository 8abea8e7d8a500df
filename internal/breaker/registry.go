package breaker

import "sync"

// Registry creates and retrieves named breakers on demand. A breaker
// stays in the registry until Remove is called for its name.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	cfg      Config
}

// NewRegistry returns an empty registry; every breaker it creates on
// demand uses cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{breakers: make(map[string]*Breaker), cfg: cfg}
}

// GetOrCreate returns the named breaker, creating it with the registry's
// default config if it doesn't exist yet.
func (r *Registry) GetOrCreate(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.cfg, nil)
		r.breakers[name] = b
	}
	return b
}

// Get returns the named breaker, or false if it hasn't been created yet.
func (r *Registry) Get(name string) (*Breaker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[name]
	return b, ok
}

// Remove deletes a breaker by name.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breakers[name]; !ok {
		return false
	}
	delete(r.breakers, name)
	return true
}

// ListAll returns a stats snapshot for every known breaker, keyed by
// name.
func (r *Registry) ListAll() map[string]Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.StatsSnapshot()
	}
	return out
}

// ResetAll transitions every known breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	breakers := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		breakers = append(breakers, b)
	}
	r.mu.Unlock()

	for _, b := range breakers {
		b.Reset()
	}
}
