// Package orchestrator owns the capture control surface: it wires the
// session, the acquisition loop, recognition, and delivery for each
// startCapture/stopCapture cycle.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/config"
	"github.com/GriffinCanCode/screen-ocr/internal/delivery"
	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/ocr"
	"github.com/GriffinCanCode/screen-ocr/internal/orchestrator/results"
	"github.com/GriffinCanCode/screen-ocr/internal/orchestrator/screen"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/recognition"
	screencap "github.com/GriffinCanCode/screen-ocr/internal/screen"
	"github.com/GriffinCanCode/screen-ocr/internal/session"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

// CaptureRequest is the input of StartCapture. A zero Region or IntervalMs
// falls back to the configured value.
type CaptureRequest struct {
	Region     preprocess.Region
	IntervalMs int
	Grant      screencap.Grant
}

// Status is a snapshot of the capture pipeline.
type Status struct {
	State         string             `json:"state"`
	SessionID     string             `json:"session_id,omitempty"`
	Region        *preprocess.Region `json:"region,omitempty"`
	IntervalMs    int64              `json:"interval_ms,omitempty"`
	Engine        string             `json:"engine"`
	LatestText    string             `json:"latest_text"`
	Loop          screen.Stats       `json:"loop"`
	Recognition   recognition.Stats  `json:"recognition"`
	Delivery      delivery.Stats     `json:"delivery"`
	FramesDropped uint64             `json:"frames_dropped"`
	Breaker       string             `json:"breaker,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithSnapshots saves full frames through w while capturing.
func WithSnapshots(w screen.Snapshotter) Option {
	return func(m *Manager) { m.snapshots = w }
}

// WithResults replaces the default in-memory result store.
func WithResults(s *results.MemoryStore) Option {
	return func(m *Manager) { m.results = s }
}

// captureRun is one startCapture..stopCapture cycle.
type captureRun struct {
	id         string
	region     preprocess.Region
	interval   time.Duration
	proc       *screen.Processor
	dispatcher *recognition.Dispatcher
	cancel     context.CancelFunc
	done       chan struct{}
	err        error // set before done closes
}

// Manager coordinates capture, recognition, and delivery.
type Manager struct {
	cfg       *config.Config
	engine    ocr.Engine
	session   *session.Session
	platform  screencap.Platform
	delivery  *delivery.Channel
	results   *results.MemoryStore
	snapshots screen.Snapshotter

	mu      sync.Mutex
	run     *captureRun
	last    Status
	lastErr error

	// draining is the dispatcher of a stopped run whose recognition outlived
	// drainTimeout. No new run starts until it is idle.
	draining     *recognition.Dispatcher
	drainTimeout time.Duration
}

// New creates a manager capturing from platform and recognizing with engine.
func New(platform screencap.Platform, engine ocr.Engine, cfg *config.Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		engine:   engine,
		session:  session.New(platform),
		platform: platform,
		delivery:     delivery.New(),
		drainTimeout: RecognitionDrainTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.results == nil {
		m.results = results.NewStore(ResultMaxEntries, nil)
	}
	return m
}

// OnResult registers the single delivery consumer. See delivery.Channel.OnResult.
func (m *Manager) OnResult(fn delivery.Consumer) (unregister func()) {
	return m.delivery.OnResult(fn)
}

// EmitResult records r and forwards it to the delivery channel.
func (m *Manager) EmitResult(r recognition.Result) {
	m.results.Add(r)
	m.delivery.EmitResult(r)
}

// StartCapture validates the request, opens a capture session, and starts
// the acquisition loop. It returns the session ID.
func (m *Manager) StartCapture(ctx context.Context, req CaptureRequest) (string, error) {
	ctx, span := trace.StartSpan(ctx, "start_capture")
	defer span.End()
	log := trace.Logger(ctx)

	region := req.Region
	if region == (preprocess.Region{}) {
		region = m.cfg.Region
	}
	interval := m.cfg.CaptureInterval
	if req.IntervalMs < 0 {
		return "", apperrors.Newf(apperrors.CodeConfigInvalid, "interval_ms must be positive, got %d", req.IntervalMs)
	}
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}
	if interval <= 0 {
		return "", apperrors.Newf(apperrors.CodeConfigInvalid, "capture interval must be positive, got %s", interval)
	}
	span.SetAttr("region", region.String())
	span.SetAttr("interval_ms", interval.Milliseconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.run != nil {
		return "", apperrors.Newf(apperrors.CodeAlreadyActive, "capture session %s is active", m.run.id).
			WithMetadata("session_id", m.run.id)
	}

	if m.draining != nil {
		if m.draining.Busy() {
			return "", apperrors.New(apperrors.CodeBusy, "recognition from the previous capture is still running").
				WithMetadata("engine", m.engine.Name())
		}
		m.draining = nil
	}

	width, height, err := m.frameSize()
	if err != nil {
		return "", err
	}
	pre, err := preprocess.New(region, m.cfg.Thresholds, width, height)
	if err != nil {
		return "", err
	}

	id, err := m.session.Start(req.Grant, width, height, m.cfg.CaptureDensity)
	if err != nil {
		span.SetAttr("error", err.Error())
		return "", err
	}

	dispatcher := recognition.NewDispatcher(m.engine, m, recognition.Options{
		Timeout:   m.cfg.OCRTimeout,
		IsCurrent: m.session.IsCurrent,
	})
	opts := screen.Options{
		Interval:      interval,
		Epoch:         m.session.Epoch(),
		SessionID:     id,
		SkipUnchanged: m.cfg.SkipUnchanged,
		Snapshots:     m.snapshots,
	}
	if m.cfg.StreamFrames {
		opts.Frames = m.delivery
	}

	runCtx, cancel := context.WithCancel(trace.WithSession(context.WithoutCancel(ctx), id))
	run := &captureRun{
		id:         id,
		region:     region,
		interval:   interval,
		proc:       screen.NewProcessor(m.session, dispatcher, pre, opts),
		dispatcher: dispatcher,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	m.run = run
	m.lastErr = nil

	go m.loop(runCtx, run)

	log.Info("capture started", "session_id", id, "region", region.String(), "interval", interval, "frame_width", width, "frame_height", height, "engine", m.engine.Name())
	return id, nil
}

// loop runs the acquisition loop and tears the run down if it ends on its own.
func (m *Manager) loop(ctx context.Context, run *captureRun) {
	err := run.proc.Run(ctx)
	run.err = err
	close(run.done)

	if err != nil {
		trace.Logger(ctx).Error("capture loop ended", "session_id", run.id, "error", err)
		m.mu.Lock()
		defer m.mu.Unlock()
		if stopErr := m.stopLocked(run); stopErr != nil {
			trace.Logger(ctx).Error("capture teardown failed", "session_id", run.id, "error", stopErr)
		}
	}
}

// frameSize returns the configured capture size, or the display size.
func (m *Manager) frameSize() (int, int, error) {
	if m.cfg.CaptureWidth > 0 && m.cfg.CaptureHeight > 0 {
		return m.cfg.CaptureWidth, m.cfg.CaptureHeight, nil
	}
	w, h, err := m.platform.DisplaySize()
	if err != nil {
		if _, ok := err.(*apperrors.AppError); ok {
			return 0, 0, err
		}
		return 0, 0, apperrors.Wrap(err, apperrors.CodeResourceAllocationFailed, "query display size")
	}
	return w, h, nil
}

// StopCapture stops the loop, waits for it to exit, and releases the
// session. Stopping when idle is a no-op.
func (m *Manager) StopCapture() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(m.run)
}

// stopLocked tears down run if it is still current. Callers hold m.mu.
func (m *Manager) stopLocked(run *captureRun) error {
	if run == nil || m.run != run {
		return nil
	}

	run.cancel()
	<-run.done

	// The loop has exited, so nothing can acquire from the source anymore.
	err := m.session.Stop()

	drained := make(chan struct{})
	go func() {
		run.dispatcher.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(m.drainTimeout):
		trace.Logger(context.Background()).Warn("recognition still running after stop", "session_id", run.id)
		m.draining = run.dispatcher
	}

	m.last = m.runStatus(run)
	m.last.State = session.Idle.String()
	m.last.SessionID = ""
	m.run = nil
	m.lastErr = run.err
	if err != nil {
		m.lastErr = err
	}

	trace.Logger(context.Background()).Info("capture stopped", "session_id", run.id)
	return err
}

// Active reports whether a capture run is in progress.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.run != nil
}

// Status reports the current run, or the counters of the last one.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st Status
	if m.run != nil {
		st = m.runStatus(m.run)
	} else {
		st = m.last
		st.State = m.session.State().String()
	}
	st.Engine = m.engine.Name()
	st.LatestText = m.results.LatestText()
	st.Delivery = m.delivery.Stats()
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Manager) runStatus(run *captureRun) Status {
	region := run.region
	return Status{
		State:         m.session.State().String(),
		SessionID:     run.id,
		Region:        &region,
		IntervalMs:    run.interval.Milliseconds(),
		Loop:          run.proc.Stats(),
		Recognition:   run.dispatcher.Stats(),
		FramesDropped: m.session.Dropped(),
		Breaker:       run.dispatcher.BreakerState().String(),
	}
}

// Results returns up to n recent results, newest first.
func (m *Manager) Results(n int) []recognition.Result {
	return m.results.Recent(n)
}

// RecentText returns the distinct texts recognized in the last N seconds.
func (m *Manager) RecentText(seconds int) string {
	return m.results.RecentText(seconds)
}

// Close stops capture and the delivery channel, then flushes queued results.
func (m *Manager) Close() error {
	err := m.StopCapture()
	m.delivery.Close()
	m.results.Close()
	return err
}
