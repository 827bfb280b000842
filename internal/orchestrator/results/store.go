// Package results keeps recent recognition results in memory and mirrors
// them to an optional persistent log.
package results

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
)

// Persister is a durable result log, such as history.DB.
type Persister interface {
	BatchWriter
	Recent(ctx context.Context, n int) ([]recognition.Result, error)
}

// Store interface for result operations.
type Store interface {
	Add(r recognition.Result)
	Latest() (recognition.Result, bool)
	Recent(n int) []recognition.Result
	RecentText(seconds int) string
}

// MemoryStore is a bounded in-memory result log.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []recognition.Result // oldest first
	maxSize int
	persist Persister
	batcher *Batcher
}

// NewStore creates a store keeping maxEntries results. persist may be nil.
func NewStore(maxEntries int, persist Persister) *MemoryStore {
	s := &MemoryStore{
		entries: make([]recognition.Result, 0, maxEntries),
		maxSize: maxEntries,
		persist: persist,
	}
	if persist != nil {
		s.batcher = NewBatcher(persist, DefaultBatchMaxSize, DefaultBatchFlushDelay)
	}
	return s
}

// Load seeds the store from the persister, if any.
func (s *MemoryStore) Load(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	recent, err := s.persist.Recent(ctx, s.maxSize)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
	for i := len(recent) - 1; i >= 0; i-- {
		s.entries = append(s.entries, recent[i])
	}
	return nil
}

// Add stores a result and queues it for persistence.
func (s *MemoryStore) Add(r recognition.Result) {
	s.mu.Lock()
	s.entries = append(s.entries, r)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	if s.batcher != nil {
		s.batcher.Add(r)
	}
}

// Close writes any queued results.
func (s *MemoryStore) Close() {
	if s.batcher != nil {
		s.batcher.Stop()
	}
}

// Latest returns the most recent result.
func (s *MemoryStore) Latest() (recognition.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return recognition.Result{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// LatestText returns the text of the most recent Text result.
func (s *MemoryStore) LatestText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Kind == recognition.KindText {
			return s.entries[i].Text
		}
	}
	return ""
}

// Recent returns up to n results, newest first.
func (s *MemoryStore) Recent(n int) []recognition.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]recognition.Result, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out
}

// RecentText joins the distinct texts recognized in the last N seconds,
// oldest first, collapsing consecutive repeats.
func (s *MemoryStore) RecentText(seconds int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := time.Now().Add(-time.Duration(seconds) * time.Second)
	var parts []string
	for _, r := range s.entries {
		if r.Kind != recognition.KindText || r.CapturedAt.Before(cutoff) {
			continue
		}
		if len(parts) > 0 && parts[len(parts)-1] == r.Text {
			continue
		}
		parts = append(parts, r.Text)
	}
	return strings.Join(parts, "\n")
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
