package shader

import (
	"sort"
	"sync"
)

// includeRegistry is the implementation of the IncludeRegistry interface.
type includeRegistry struct {
	mu      *sync.RWMutex
	entries map[string]string
}

// IncludeRegistry maps include names to WGSL fragment text. A registry is owned by a single
// rendering Context; it is consulted only when a shader is pre-processed, so replacing an entry
// affects pipelines created afterwards and never an existing pipeline.
type IncludeRegistry interface {
	// Set registers or replaces the fragment for name.
	//
	// Parameters:
	//   - name: the include name as written between the quotes of an #include directive
	//   - source: the fragment text
	Set(name, source string)

	// Get returns the fragment registered under name.
	//
	// Parameters:
	//   - name: the include name
	//
	// Returns:
	//   - string: the fragment text
	//   - bool: false if nothing is registered under name
	Get(name string) (string, bool)

	// Delete removes name from the registry. Deleting an unknown name is a no-op.
	//
	// Parameters:
	//   - name: the include name
	Delete(name string)

	// Names returns every registered name in sorted order.
	//
	// Returns:
	//   - []string: the registered names
	Names() []string

	// Snapshot returns a copy of the registry contents. The pre-processor works on a snapshot so
	// concurrent updates cannot change the text of a shader while it is being expanded.
	//
	// Returns:
	//   - map[string]string: name to fragment text
	Snapshot() map[string]string
}

var _ IncludeRegistry = &includeRegistry{}

// NewIncludeRegistry creates an empty IncludeRegistry.
//
// Returns:
//   - IncludeRegistry: the new registry
func NewIncludeRegistry() IncludeRegistry {
	return &includeRegistry{
		mu:      &sync.RWMutex{},
		entries: make(map[string]string),
	}
}

func (r *includeRegistry) Set(name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = source
}

func (r *includeRegistry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.entries[name]
	return src, ok
}

func (r *includeRegistry) Delete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, name)
}

func (r *includeRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for n := range r.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *includeRegistry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}
