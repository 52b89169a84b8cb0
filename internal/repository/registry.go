package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a backend handle. Constructors are cheap to
// register; the expensive connection work happens on first Resolve.
type Constructor func(ctx context.Context) (Repository, error)

// Registry maps backend names to constructors and hands out one shared
// handle per name. Registration sources are applied in order and later
// registrants win, which lets embedders override the built-in backends.
type Registry struct {
	mu        sync.Mutex
	ctors     map[string]Constructor
	instances map[string]Repository
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors:     make(map[string]Constructor),
		instances: make(map[string]Repository),
	}
}

// Register adds or replaces the constructor for a backend name.
func (r *Registry) Register(name string, ctor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the shared handle for the named backend, constructing
// it on first use. Only one underlying connection is ever built per
// name, even under concurrent resolution.
func (r *Registry) Resolve(ctx context.Context, name string) (Repository, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if repo, ok := r.instances[name]; ok {
		return repo, nil
	}
	ctor, ok := r.ctors[name]
	if !ok {
		return nil, fmt.Errorf("repository %q not found", name)
	}
	repo, err := ctor(ctx)
	if err != nil {
		return nil, fmt.Errorf("construct repository %q: %w", name, err)
	}
	r.instances[name] = repo
	return repo, nil
}

// Close closes every constructed handle. The registry remains usable;
// closed handles are discarded and rebuilt on the next Resolve.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, repo := range r.instances {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close repository %q: %w", name, err)
		}
		delete(r.instances, name)
	}
	return firstErr
}
