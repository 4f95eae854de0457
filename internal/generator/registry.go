package generator

import (
	"fmt"
	"sort"
	"sync"
)

// Info pairs a service type with the capabilities of its generator.
type Info struct {
	Service      string       `json:"service"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds registered generators keyed by service type.
type Registry struct {
	mu         sync.RWMutex
	generators map[string]Generator
}

// NewRegistry creates an empty generator registry.
func NewRegistry() *Registry {
	return &Registry{
		generators: make(map[string]Generator),
	}
}

// Register adds a generator to the registry under the given service type.
func (r *Registry) Register(service string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[service] = g
}

// Resolve returns the generator registered for service.
func (r *Registry) Resolve(service string) (Generator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.generators[service]
	if !ok {
		return nil, fmt.Errorf("generator for service %q is not registered", service)
	}
	return g, nil
}

// List returns information about all registered generators, sorted by
// service type for a stable API response.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.generators))
	for service, g := range r.generators {
		infos = append(infos, Info{
			Service:      service,
			Capabilities: g.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Service < infos[j].Service
	})
	return infos
}
