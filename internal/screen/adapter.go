package screen

import (
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// Adapter pairs a mirrored display with the sink it writes into. It is the
// only handle the capture session keeps on platform resources.
type Adapter struct {
	backend string
	sink    *BufferSink
	display Display

	once       sync.Once
	releaseErr error
}

// Open validates grant, allocates a width x height sink and starts a mirrored
// display writing into it. On failure nothing stays allocated.
func Open(platform Platform, grant Grant, width, height, density int) (*Adapter, error) {
	if err := grant.Validate(); err != nil {
		return nil, err
	}
	sink, err := NewBufferSink(width, height, DefaultMaxImages, 0)
	if err != nil {
		return nil, err
	}
	display, err := platform.Mirror(grant, sink, density)
	if err != nil {
		_ = sink.Close()
		return nil, wrapMirrorError(err, platform.Name())
	}
	slog.Info("frame source opened", "backend", platform.Name(), "width", width, "height", height, "density", density)
	return &Adapter{backend: platform.Name(), sink: sink, display: display}, nil
}

// Backend names the platform the adapter was opened on.
func (a *Adapter) Backend() string { return a.backend }

// Size returns the frame dimensions.
func (a *Adapter) Size() (width, height int) { return a.sink.Size() }

// Dropped reports writes that found no free slot.
func (a *Adapter) Dropped() uint64 { return a.sink.Dropped() }

// AcquireFrame returns the most recent frame, or ok=false when none is
// available yet. The caller must Release the frame.
func (a *Adapter) AcquireFrame() (*RawFrame, bool, error) {
	return a.sink.AcquireLatest()
}

// Release tears down the display before the sink so nothing writes into a
// released buffer. Safe to call more than once.
func (a *Adapter) Release() error {
	a.once.Do(func() {
		var errs []error
		if err := a.display.Release(); err != nil {
			errs = append(errs, err)
		}
		if err := a.sink.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			a.releaseErr = apperrors.Wrap(errors.Join(errs...), apperrors.CodeResourceReleaseFailed, "release frame source")
		}
		slog.Info("frame source released", "backend", a.backend)
	})
	return a.releaseErr
}
