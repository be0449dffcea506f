package agent

import (
	"sort"
	"sync"
)

// Factory creates a fresh Agent. Each call must return a new agent with a
// clean chat so runs do not leak state into each other.
type Factory func() *Agent

// Entry describes a registered agent.
type Entry struct {
	Name        string
	Description string
}

// Registry is a concurrency-safe directory of agent factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	entries   map[string]Entry
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		entries:   make(map[string]Entry),
	}
}

// Register adds a factory, replacing any with the same name.
func (r *Registry) Register(name, description string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
	r.entries[name] = Entry{Name: name, Description: description}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.factories[name]
	return ok
}

// List returns all entries sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries
}

// Spawn creates a fresh agent from the named factory.
func (r *Registry) Spawn(name string) (*Agent, bool) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}

	return f(), true
}
