package syncx

import "sync"

// Mailbox holds at most one value. Put replaces an untaken value, so a slow
// reader only ever sees the newest one.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
	ready chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{ready: make(chan struct{}, 1)}
}

// Put stores v and reports whether it replaced an untaken value. Never blocks.
func (m *Mailbox[T]) Put(v T) (replaced bool) {
	m.mu.Lock()
	replaced = m.full
	m.value = v
	m.full = true
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return replaced
}

// Ready is signalled after Put. A signal may be stale; Take reports whether a
// value was actually there.
func (m *Mailbox[T]) Ready() <-chan struct{} { return m.ready }

// Take removes and returns the value.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	if !m.full {
		return zero, false
	}
	v := m.value
	m.value = zero
	m.full = false
	return v, true
}
