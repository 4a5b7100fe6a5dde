package breaker

import "sync"

// Registry holds one Breaker per logical dependency. The gateway wires a
// single Registry into the resilient client so every conversation shares
// the same breaker per downstream.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	opts     []Option
}

// NewRegistry creates a Registry. The options apply to every breaker it
// creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		opts:     opts,
	}
}

// Get returns the breaker for the named dependency, creating it on first
// use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[name]; ok {
		return b
	}

	b := New(name, r.opts...)
	r.breakers[name] = b

	return b
}
