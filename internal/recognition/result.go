// Package recognition submits preprocessed crops to an OCR engine, one at a
// time, and forwards the outcome.
package recognition

import (
	"time"
)

// Kind tags a Result.
type Kind int

const (
	KindText Kind = iota
	KindEmpty
	KindFailure
)

var kindNames = [...]string{"text", "empty", "failure"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// MarshalText encodes the kind as its name.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Correlation ties a result to the frame it was recognized from.
type Correlation struct {
	CapturedAt time.Time
	Sequence   uint64
	Epoch      uint64
	SessionID  string

	// Settled, when set, is called with the result kind once recognition
	// finishes for a live session, before the result is emitted.
	Settled func(Kind)
}

// Result is the outcome of one recognition: Text, Empty, or Failure.
type Result struct {
	Kind       Kind          `json:"kind"`
	Text       string        `json:"text,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	CapturedAt time.Time     `json:"captured_at"`
	Sequence   uint64        `json:"sequence"`
	SessionID  string        `json:"session_id,omitempty"`
	Engine     string        `json:"engine"`
	Latency    time.Duration `json:"latency_ns"`

	epoch uint64
}

// Text builds a KindText result.
func Text(text string, c Correlation) Result {
	return Result{Kind: KindText, Text: text, CapturedAt: c.CapturedAt, Sequence: c.Sequence, SessionID: c.SessionID, epoch: c.Epoch}
}

// Empty builds a KindEmpty result.
func Empty(c Correlation) Result {
	return Result{Kind: KindEmpty, CapturedAt: c.CapturedAt, Sequence: c.Sequence, SessionID: c.SessionID, epoch: c.Epoch}
}

// Failure builds a KindFailure result.
func Failure(reason string, c Correlation) Result {
	return Result{Kind: KindFailure, Reason: reason, CapturedAt: c.CapturedAt, Sequence: c.Sequence, SessionID: c.SessionID, epoch: c.Epoch}
}

// Epoch is the session generation the result belongs to.
func (r Result) Epoch() uint64 { return r.epoch }
