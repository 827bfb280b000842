package results

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
)

type fakePersister struct {
	mu      sync.Mutex
	saved   []recognition.Result
	batches int
	recent  []recognition.Result
	err     error
}

func (f *fakePersister) SaveBatch(_ context.Context, rs []recognition.Result) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	f.saved = append(f.saved, rs...)
	if f.err != nil {
		return 0, f.err
	}
	return len(rs), nil
}

func (f *fakePersister) snapshot() ([]recognition.Result, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recognition.Result(nil), f.saved...), f.batches
}

func (f *fakePersister) Recent(_ context.Context, n int) ([]recognition.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.recent) {
		return f.recent[:n], nil
	}
	return f.recent, nil
}

func text(s string, at time.Time) recognition.Result {
	return recognition.Text(s, recognition.Correlation{CapturedAt: at})
}

func TestStoreAdd(t *testing.T) {
	s := NewStore(30, nil)
	s.Add(text("Hello", time.Now()))

	r, ok := s.Latest()
	if !ok || r.Text != "Hello" {
		t.Errorf("Latest() = %+v, %v", r, ok)
	}
}

func TestStoreMaxSize(t *testing.T) {
	s := NewStore(5, nil)
	for i := 0; i < 10; i++ {
		s.Add(text(fmt.Sprint(i), time.Now()))
	}

	if s.Len() != 5 {
		t.Errorf("Len() = %d, want 5", s.Len())
	}
	recent := s.Recent(0)
	if recent[0].Text != "9" || recent[4].Text != "5" {
		t.Errorf("Recent() = %q..%q, want 9..5", recent[0].Text, recent[4].Text)
	}
}

func TestRecentLimit(t *testing.T) {
	s := NewStore(10, nil)
	for i := 0; i < 4; i++ {
		s.Add(text(fmt.Sprint(i), time.Now()))
	}
	if got := s.Recent(2); len(got) != 2 || got[0].Text != "3" {
		t.Errorf("Recent(2) = %+v", got)
	}
}

func TestLatestText(t *testing.T) {
	s := NewStore(10, nil)
	if s.LatestText() != "" {
		t.Error("empty store should have no text")
	}
	s.Add(text("score 10", time.Now()))
	s.Add(recognition.Empty(recognition.Correlation{}))
	if got := s.LatestText(); got != "score 10" {
		t.Errorf("LatestText() = %q", got)
	}
}

func TestRecentText(t *testing.T) {
	s := NewStore(30, nil)
	now := time.Now()
	s.Add(text("Old", now.Add(-5*time.Minute)))
	s.Add(text("A", now))
	s.Add(text("A", now))
	s.Add(recognition.Failure("x", recognition.Correlation{CapturedAt: now}))
	s.Add(text("B", now))

	if got := s.RecentText(60); got != "A\nB" {
		t.Errorf("RecentText(60) = %q, want %q", got, "A\nB")
	}
}

func TestPersistAndLoad(t *testing.T) {
	now := time.Now()
	p := &fakePersister{recent: []recognition.Result{text("newest", now), text("older", now)}}
	s := NewStore(10, p)

	if err := s.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if r, _ := s.Latest(); r.Text != "newest" {
		t.Errorf("Latest() after Load = %q, want newest", r.Text)
	}

	s.Add(text("fresh", now))
	s.Close()
	if saved, _ := p.snapshot(); len(saved) != 1 || saved[0].Text != "fresh" {
		t.Errorf("saved = %+v", saved)
	}
}

func TestPersistErrorKeepsMemory(t *testing.T) {
	p := &fakePersister{err: errors.New("disk full")}
	s := NewStore(10, p)
	s.Add(text("kept", time.Now()))
	s.Close()
	if s.Len() != 1 {
		t.Error("a persistence failure must not lose the in-memory result")
	}
	if err := s.Load(context.Background()); err == nil {
		t.Error("Load() should surface persister errors")
	}
}
