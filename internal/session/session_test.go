package session

import (
	"errors"
	"sync/atomic"
	"testing"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/screen"
)

type fakeDisplay struct {
	released *atomic.Int32
	err      error
}

func (d fakeDisplay) Release() error {
	d.released.Add(1)
	return d.err
}

type fakePlatform struct {
	mirrors    atomic.Int32
	released   atomic.Int32
	releaseErr error
	mirrorErr  error
}

func (p *fakePlatform) Name() string                   { return "fake" }
func (p *fakePlatform) DisplaySize() (int, int, error) { return 32, 32, nil }
func (p *fakePlatform) Mirror(_ screen.Grant, _ *screen.BufferSink, _ int) (screen.Display, error) {
	if p.mirrorErr != nil {
		return nil, p.mirrorErr
	}
	p.mirrors.Add(1)
	return fakeDisplay{released: &p.released, err: p.releaseErr}, nil
}

var grant = screen.Grant{ResultCode: screen.ResultOK}

func TestStartStop(t *testing.T) {
	p := &fakePlatform{}
	s := New(p)

	if s.State() != Idle {
		t.Fatalf("State() = %v, want idle", s.State())
	}
	id, err := s.Start(grant, 32, 32, 160)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" || s.ID() != id {
		t.Errorf("ID() = %q, Start returned %q", s.ID(), id)
	}
	if s.State() != Active {
		t.Errorf("State() = %v, want active", s.State())
	}
	if w, h, ok := s.FrameSize(); !ok || w != 32 || h != 32 {
		t.Errorf("FrameSize() = %d, %d, %v", w, h, ok)
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.State() != Idle || s.ID() != "" {
		t.Errorf("after Stop: state=%v id=%q", s.State(), s.ID())
	}
	if p.released.Load() != 1 {
		t.Errorf("display released %d times, want 1", p.released.Load())
	}
}

func TestStartTwiceFails(t *testing.T) {
	p := &fakePlatform{}
	s := New(p)
	id, err := s.Start(grant, 32, 32, 160)
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Start(grant, 32, 32, 160)
	if !apperrors.IsCode(err, apperrors.CodeAlreadyActive) {
		t.Fatalf("second Start() = %v, want ALREADY_ACTIVE", err)
	}
	if p.mirrors.Load() != 1 {
		t.Errorf("Mirror called %d times, want 1", p.mirrors.Load())
	}
	if p.released.Load() != 0 {
		t.Error("original resource must stay untouched")
	}
	if s.ID() != id {
		t.Error("original session should remain active")
	}
	_ = s.Stop()
}

func TestStopIdleIsNoop(t *testing.T) {
	s := New(&fakePlatform{})
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on idle = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop() = %v", err)
	}
}

func TestStartFailureStaysIdle(t *testing.T) {
	tests := []struct {
		name  string
		p     *fakePlatform
		grant screen.Grant
		code  apperrors.Code
	}{
		{"invalid grant", &fakePlatform{}, screen.Grant{ResultCode: 0}, apperrors.CodeInvalidGrant},
		{"mirror fails", &fakePlatform{mirrorErr: errors.New("no display")}, grant, apperrors.CodeResourceAllocationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.p)
			_, err := s.Start(tt.grant, 32, 32, 160)
			if !apperrors.IsCode(err, tt.code) {
				t.Fatalf("Start() = %v, want %s", err, tt.code)
			}
			if s.State() != Idle {
				t.Errorf("State() = %v, want idle", s.State())
			}
			if s.Epoch() != 0 {
				t.Errorf("Epoch() = %d, want 0", s.Epoch())
			}
		})
	}
}

func TestStopReleaseFailureReturnsIdle(t *testing.T) {
	s := New(&fakePlatform{releaseErr: errors.New("stuck")})
	if _, err := s.Start(grant, 32, 32, 160); err != nil {
		t.Fatal(err)
	}
	err := s.Stop()
	if !apperrors.IsCode(err, apperrors.CodeResourceReleaseFailed) {
		t.Errorf("Stop() = %v, want RESOURCE_RELEASE_FAILED", err)
	}
	if s.State() != Idle {
		t.Errorf("State() = %v, want idle", s.State())
	}
}

func TestAcquireRequiresActive(t *testing.T) {
	s := New(&fakePlatform{})
	if _, _, err := s.Acquire(); !apperrors.IsCode(err, apperrors.CodeNotActive) {
		t.Errorf("Acquire() idle = %v, want NOT_ACTIVE", err)
	}

	_, _ = s.Start(grant, 32, 32, 160)
	if f, ok, err := s.Acquire(); err != nil || ok || f != nil {
		t.Errorf("Acquire() before any frame = %v, %v, %v", f, ok, err)
	}
	_ = s.Stop()

	if _, _, err := s.Acquire(); !apperrors.IsCode(err, apperrors.CodeNotActive) {
		t.Errorf("Acquire() after stop = %v, want NOT_ACTIVE", err)
	}
}

func TestEpoch(t *testing.T) {
	s := New(&fakePlatform{})
	_, _ = s.Start(grant, 32, 32, 160)
	first := s.Epoch()
	if !s.IsCurrent(first) {
		t.Error("first epoch should be current")
	}
	_ = s.Stop()
	if s.IsCurrent(first) {
		t.Error("stopped epoch should not be current")
	}

	_, _ = s.Start(grant, 32, 32, 160)
	if s.IsCurrent(first) {
		t.Error("superseded epoch should not be current")
	}
	if !s.IsCurrent(s.Epoch()) || s.Epoch() != first+1 {
		t.Errorf("Epoch() = %d, want %d", s.Epoch(), first+1)
	}
	_ = s.Stop()
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{Idle: "idle", Active: "active", Stopping: "stopping", State(-1): "unknown", State(7): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
