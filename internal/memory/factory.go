package memory

import "fmt"

// CreateStore builds a Store for backend: "sqlite" (durable), "memory"
// (ephemeral), or "noop" (disabled).
func CreateStore(backend, path string) (Store, error) {
	switch backend {
	case "noop":
		return NewNoopStore(), nil
	case "memory":
		return NewInMemoryStore(), nil
	case "sqlite", "":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}
}
