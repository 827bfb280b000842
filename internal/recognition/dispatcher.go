package recognition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/ocr"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/resilience"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// DefaultTimeout bounds one recognition.
const DefaultTimeout = 5 * time.Second

// ErrBusy is returned by Submit while a recognition is in flight.
var ErrBusy = apperrors.New(apperrors.CodeBusy, "recognition already in flight")

// Emitter receives completed results.
type Emitter interface {
	EmitResult(Result)
}

// Options configure a Dispatcher.
type Options struct {
	// Timeout bounds one recognition. Zero means DefaultTimeout.
	Timeout time.Duration
	// Breaker guards the engine. Nil creates one from resilience.RecognitionConfig.
	Breaker *resilience.Breaker
	// IsCurrent reports whether a session epoch is still live. Results for
	// other epochs are discarded. Nil accepts every epoch.
	IsCurrent func(epoch uint64) bool
}

// Stats are dispatcher counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Delivered uint64 `json:"delivered"`
	Discarded uint64 `json:"discarded"`
}

// Dispatcher runs at most one recognition at a time.
type Dispatcher struct {
	engine    ocr.Engine
	emitter   Emitter
	breaker   *resilience.Breaker
	timeout   time.Duration
	isCurrent func(uint64) bool

	inFlight atomic.Bool
	wg       sync.WaitGroup

	submitted atomic.Uint64
	rejected  atomic.Uint64
	delivered atomic.Uint64
	discarded atomic.Uint64
}

// NewDispatcher creates a dispatcher sending results to emitter.
func NewDispatcher(engine ocr.Engine, emitter Emitter, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Breaker == nil {
		cfg := resilience.RecognitionConfig()
		cfg.IsFailure = countsAsEngineFailure
		opts.Breaker = resilience.New(cfg)
	}
	if opts.IsCurrent == nil {
		opts.IsCurrent = func(uint64) bool { return true }
	}
	return &Dispatcher{
		engine:    engine,
		emitter:   emitter,
		breaker:   opts.Breaker,
		timeout:   opts.Timeout,
		isCurrent: opts.IsCurrent,
	}
}

// countsAsEngineFailure excludes outcomes that say nothing about engine health.
func countsAsEngineFailure(err error) bool {
	return err != nil &&
		!errors.Is(err, ocr.ErrNoText) &&
		!errors.Is(err, context.Canceled)
}

// Busy reports whether a recognition is in flight.
func (d *Dispatcher) Busy() bool { return d.inFlight.Load() }

// Submit starts recognizing img in the background and returns immediately.
// It returns ErrBusy if a recognition is already in flight; the image is
// then dropped. Cancelling ctx cancels the recognition and suppresses its
// result.
func (d *Dispatcher) Submit(ctx context.Context, img *preprocess.Image, c Correlation) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.rejected.Add(1)
		return ErrBusy
	}
	d.submitted.Add(1)
	d.wg.Add(1)
	go d.run(ctx, img, c)
	return nil
}

func (d *Dispatcher) run(parent context.Context, img *preprocess.Image, c Correlation) {
	defer d.wg.Done()
	// Cleared only after the result is handed off, so results leave in
	// submission order.
	defer d.inFlight.Store(false)

	ctx, span := trace.StartSpan(parent, "recognize")
	defer span.End()
	span.SetAttr("engine", d.engine.Name())
	span.SetAttr("sequence", c.Sequence)
	log := trace.Logger(ctx)

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	text, err := resilience.ExecuteWithResult(ctx, d.breaker, func(ctx context.Context) (string, error) {
		return d.engine.Recognize(ctx, img)
	})

	if parent.Err() != nil || !d.isCurrent(c.Epoch) {
		d.discarded.Add(1)
		log.Debug("discarding recognition for stopped session", "epoch", c.Epoch)
		return
	}

	res := d.classify(text, err, c)
	res.Engine = d.engine.Name()
	res.Latency = time.Since(start)
	span.SetAttr("kind", res.Kind.String())
	if c.Settled != nil {
		c.Settled(res.Kind)
	}

	switch res.Kind {
	case KindFailure:
		log.Warn("recognition failed", "error", err, "latency", res.Latency)
	default:
		log.Debug("recognition complete", "kind", res.Kind, "text", res.Text, "latency", res.Latency)
	}

	d.emitter.EmitResult(res)
	d.delivered.Add(1)
}

func (d *Dispatcher) classify(text string, err error, c Correlation) Result {
	switch {
	case err == nil:
		return Text(text, c)
	case errors.Is(err, ocr.ErrNoText):
		return Empty(c)
	case errors.Is(err, context.DeadlineExceeded):
		return Failure(apperrors.Wrap(err, apperrors.CodeTimeout, "recognition timed out").Error(), c)
	default:
		if _, ok := err.(*apperrors.AppError); ok {
			return Failure(err.Error(), c)
		}
		return Failure(apperrors.Wrap(err, apperrors.CodeRecognitionFailed, d.engine.Name()).Error(), c)
	}
}

// Wait blocks until the in-flight recognition, if any, has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Rejected:  d.rejected.Load(),
		Delivered: d.delivered.Load(),
		Discarded: d.discarded.Load(),
	}
}

// BreakerState reports the engine breaker state.
func (d *Dispatcher) BreakerState() resilience.State { return d.breaker.State() }
