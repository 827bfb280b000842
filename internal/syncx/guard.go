// Package syncx provides small generic synchronization primitives.
package syncx

import "sync"

// Guard is a value readable concurrently and replaced under a write lock.
// T should be a value type or a pointer that is never mutated in place.
type Guard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *Guard[T] {
	return &Guard[T]{value: initial}
}

// Get returns the current value.
func (g *Guard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set replaces the value.
func (g *Guard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap replaces the value and returns the previous one.
func (g *Guard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}

// Update calls fn with the current value under the write lock. If fn
// returns ok, its result replaces the value. Update reports ok.
func (g *Guard[T]) Update(fn func(cur T) (next T, ok bool)) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	next, ok := fn(g.value)
	if ok {
		g.value = next
	}
	return ok
}
