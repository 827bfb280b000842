// Package session owns the single active frame source and its lifecycle.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/screen"
)

// State is the session lifecycle state.
type State int32

const (
	Idle State = iota
	Active
	Stopping
)

var stateNames = [...]string{"idle", "active", "stopping"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session holds at most one frame source adapter at a time.
type Session struct {
	platform screen.Platform

	mu      sync.RWMutex
	state   State
	adapter *screen.Adapter
	id      string

	// epoch increments on every successful start so late completions from a
	// previous session can be recognized and discarded.
	epoch atomic.Uint64
}

// New creates an idle session over platform.
func New(platform screen.Platform) *Session {
	return &Session{platform: platform}
}

// Start opens a frame source of width x height. It fails with ALREADY_ACTIVE
// if a source is already open and leaves that source untouched.
func (s *Session) Start(grant screen.Grant, width, height, density int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return "", apperrors.Newf(apperrors.CodeAlreadyActive, "capture session %s is %s", s.id, s.state).
			WithMetadata("session_id", s.id)
	}

	adapter, err := screen.Open(s.platform, grant, width, height, density)
	if err != nil {
		return "", err
	}

	s.adapter = adapter
	s.id = uuid.NewString()
	s.state = Active
	epoch := s.epoch.Add(1)
	slog.Info("capture session started", "session_id", s.id, "epoch", epoch, "backend", adapter.Backend())
	return s.id, nil
}

// Stop releases the frame source. Stopping an idle session is a no-op.
// The caller must have stopped anything acquiring frames first.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state != Active {
		s.mu.Unlock()
		return nil
	}
	s.state = Stopping
	adapter, id := s.adapter, s.id
	s.mu.Unlock()

	err := adapter.Release()

	s.mu.Lock()
	s.adapter = nil
	s.id = ""
	s.state = Idle
	s.mu.Unlock()

	if err != nil {
		slog.Error("capture session release failed", "session_id", id, "error", err)
		return err
	}
	slog.Info("capture session stopped", "session_id", id)
	return nil
}

// Acquire returns the latest frame from the active source. It never touches
// the source unless the session is Active; ok is false when no frame has been
// produced yet. The caller must Release the frame.
func (s *Session) Acquire() (*screen.RawFrame, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Active {
		return nil, false, apperrors.Newf(apperrors.CodeNotActive, "capture session is %s", s.state)
	}
	return s.adapter.AcquireFrame()
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID returns the active session ID, or "" when idle.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// FrameSize returns the active source's frame size.
func (s *Session) FrameSize() (width, height int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != Active {
		return 0, 0, false
	}
	w, h := s.adapter.Size()
	return w, h, true
}

// Dropped reports mirrored frames dropped for lack of a free slot.
func (s *Session) Dropped() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.adapter == nil {
		return 0
	}
	return s.adapter.Dropped()
}

// Epoch returns the current session generation.
func (s *Session) Epoch() uint64 { return s.epoch.Load() }

// IsCurrent reports whether epoch belongs to the session that is still active.
func (s *Session) IsCurrent(epoch uint64) bool {
	return s.State() == Active && s.epoch.Load() == epoch
}
