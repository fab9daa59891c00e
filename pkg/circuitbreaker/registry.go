package circuitbreaker

import (
	"sync"
	"time"
)

// Registry holds one breaker per key, created lazily on first use.
type Registry struct {
	mu        sync.RWMutex
	breakers  map[string]*Breaker
	threshold int
	cooldown  time.Duration
}

// NewRegistry creates a registry whose breakers share the given settings.
func NewRegistry(threshold int, cooldown time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// For returns the breaker for key, creating it if needed.
func (r *Registry) For(key string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[key]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok = r.breakers[key]; ok {
		return b
	}
	b = New(r.threshold, r.cooldown)
	r.breakers[key] = b
	return b
}

// OpenCount returns how many breakers are currently open.
func (r *Registry) OpenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	open := 0
	for _, b := range r.breakers {
		if b.State() == Open {
			open++
		}
	}
	return open
}
