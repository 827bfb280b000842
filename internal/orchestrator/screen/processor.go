// Package screen runs the frame acquisition loop: acquire the newest frame,
// crop and binarize the region, and hand it to recognition without ever
// queueing work.
package screen

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
	screencap "github.com/GriffinCanCode/screen-ocr/internal/screen"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// FrameSource yields the newest frame; it is satisfied by session.Session.
type FrameSource interface {
	Acquire() (*screencap.RawFrame, bool, error)
}

// Dispatcher is the recognition side of the loop.
type Dispatcher interface {
	Busy() bool
	Submit(ctx context.Context, img *preprocess.Image, c recognition.Correlation) error
}

// FrameEmitter receives PNG crops when frame streaming is on.
type FrameEmitter interface {
	EmitFrame(png []byte, capturedAt time.Time)
}

// Snapshotter saves full frames as a side effect.
type Snapshotter interface {
	Offer(img image.Image, at time.Time) bool
}

// Options configure a Processor. Zero values disable the optional features.
type Options struct {
	Interval      time.Duration
	Epoch         uint64
	SessionID     string
	SkipUnchanged bool
	Frames        FrameEmitter
	Snapshots     Snapshotter
}

// Stats are loop counters.
type Stats struct {
	Ticks     uint64 `json:"ticks"`
	Gaps      uint64 `json:"gaps"`
	Busy      uint64 `json:"busy"`
	Unchanged uint64 `json:"unchanged"`
	Submitted uint64 `json:"submitted"`
	Errors    uint64 `json:"errors"`
}

// outcome tags what one tick did. Only terminal outcomes end the loop.
type outcome int

const (
	outcomeSubmitted outcome = iota
	outcomeGap
	outcomeBusy
	outcomeUnchanged
	outcomeTransient
	outcomeTerminal
)

// Processor is the acquisition loop for one capture session.
type Processor struct {
	source     FrameSource
	dispatcher Dispatcher
	pre        *preprocess.Preprocessor
	opts       Options

	// accepted is the hash of the last crop recognized without failure.
	// It is stored from the dispatcher goroutine.
	accepted atomic.Pointer[goimagehash.ImageHash]

	ticks     atomic.Uint64
	gaps      atomic.Uint64
	busy      atomic.Uint64
	unchanged atomic.Uint64
	submitted atomic.Uint64
	errs      atomic.Uint64
}

// NewProcessor creates a loop over source.
func NewProcessor(source FrameSource, dispatcher Dispatcher, pre *preprocess.Preprocessor, opts Options) *Processor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Processor{source: source, dispatcher: dispatcher, pre: pre, opts: opts}
}

// Run ticks until ctx is cancelled or a tick hits a terminal error, which is
// returned. The context passed to recognition is ctx, so cancelling it also
// cancels an in-flight recognition.
func (p *Processor) Run(ctx context.Context) error {
	ctx = trace.WithSession(ctx, p.opts.SessionID)
	log := trace.Logger(ctx)
	log.Info("acquisition loop started", "interval", p.opts.Interval, "region", p.pre.Region())

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("acquisition loop stopped", "ticks", p.ticks.Load())
			return nil
		case <-ticker.C:
			if out, err := p.tick(ctx); out == outcomeTerminal {
				log.Error("acquisition loop aborted", "error", err)
				return err
			}
		}
	}
}

func (p *Processor) tick(ctx context.Context) (outcome, error) {
	// A stop that raced the ticker must not reach the source.
	if ctx.Err() != nil {
		return outcomeGap, nil
	}
	p.ticks.Add(1)

	ctx, span := trace.StartSpan(ctx, "capture_tick")
	defer span.End()
	log := trace.Logger(ctx)

	frame, ok, err := p.source.Acquire()
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotActive) || errors.Is(err, screencap.ErrReleased) {
			return outcomeTerminal, err
		}
		p.errs.Add(1)
		log.Warn("frame acquisition failed", "error", err)
		return outcomeTransient, err
	}
	if !ok {
		p.gaps.Add(1)
		return outcomeGap, nil
	}
	defer frame.Release()
	span.SetAttr("sequence", frame.Sequence)

	if p.dispatcher.Busy() {
		p.busy.Add(1)
		log.Debug("recognition in flight, dropping frame", "sequence", frame.Sequence)
		return outcomeBusy, nil
	}

	if p.opts.Snapshots != nil {
		p.opts.Snapshots.Offer(frame.Image, frame.CapturedAt)
	}

	img, err := p.pre.Transform(frame.Image, frame.CapturedAt)
	corr := recognition.Correlation{
		CapturedAt: frame.CapturedAt,
		Sequence:   frame.Sequence,
		Epoch:      p.opts.Epoch,
		SessionID:  p.opts.SessionID,
	}
	frame.Release()
	if err != nil {
		if apperrors.IsConfiguration(err) {
			return outcomeTerminal, err
		}
		p.errs.Add(1)
		log.Warn("preprocessing failed", "error", err)
		return outcomeTransient, err
	}

	if p.opts.SkipUnchanged {
		hash, same := p.unchangedSinceAccepted(img)
		if same {
			p.unchanged.Add(1)
			return outcomeUnchanged, nil
		}
		if hash != nil {
			corr.Settled = func(k recognition.Kind) {
				if k != recognition.KindFailure {
					p.accepted.Store(hash)
				}
			}
		}
	}

	if p.opts.Frames != nil {
		if data, err := img.PNG(); err == nil {
			p.opts.Frames.EmitFrame(data, img.CapturedAt)
		} else {
			log.Debug("frame encode failed", "error", err)
		}
	}

	if err := p.dispatcher.Submit(ctx, img, corr); err != nil {
		if errors.Is(err, recognition.ErrBusy) {
			p.busy.Add(1)
			return outcomeBusy, nil
		}
		p.errs.Add(1)
		return outcomeTransient, err
	}
	p.submitted.Add(1)
	return outcomeSubmitted, nil
}

// unchangedSinceAccepted hashes the crop and compares it with the last crop
// that was recognized without failure. A failed recognition never becomes
// the baseline, so the same screen is submitted again on the next tick.
func (p *Processor) unchangedSinceAccepted(img *preprocess.Image) (*goimagehash.ImageHash, bool) {
	hash, err := goimagehash.PerceptionHash(img.Gray)
	if err != nil {
		return nil, false
	}
	last := p.accepted.Load()
	if last == nil {
		return hash, false
	}
	dist, err := last.Distance(hash)
	if err != nil || dist > MaxHashDistance {
		return hash, false
	}
	return hash, true
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	return Stats{
		Ticks:     p.ticks.Load(),
		Gaps:      p.gaps.Load(),
		Busy:      p.busy.Load(),
		Unchanged: p.unchanged.Load(),
		Submitted: p.submitted.Load(),
		Errors:    p.errs.Load(),
	}
}
