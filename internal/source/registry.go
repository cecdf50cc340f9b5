package source

import "sync"

// Registry holds all enabled source adapters keyed by name.
type Registry struct {
	mu      sync.RWMutex
	sources map[SourceName]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{
		sources: make(map[SourceName]Source),
	}
}

// Register adds a source to the registry.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Name()] = s
}

// Get returns a source by name, or nil if not registered.
func (r *Registry) Get(name SourceName) Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// All returns all registered sources in a stable order.
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []Source
	for _, name := range AllSourceNames() {
		if s, ok := r.sources[name]; ok {
			result = append(result, s)
		}
	}
	return result
}
