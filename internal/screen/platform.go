package screen

import (
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	xdraw "golang.org/x/image/draw"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// DefaultMirrorInterval is how often a polling display refreshes its sink.
const DefaultMirrorInterval = 250 * time.Millisecond

// Display is a mirrored display bound to a BufferSink.
type Display interface {
	// Release stops writing into the sink. It returns only after the last
	// write has finished.
	Release() error
}

// Platform is the display-mirroring service.
type Platform interface {
	Name() string
	// DisplaySize reports the native size of the mirrored screen.
	DisplaySize() (width, height int, err error)
	// Mirror creates a display that writes into sink at the sink's size.
	Mirror(grant Grant, sink *BufferSink, density int) (Display, error)
}

// grabFunc produces one full-screen image.
type grabFunc func() (image.Image, error)

// pollingDisplay mirrors a screen by grabbing it on an interval and copying
// each grab into the sink.
type pollingDisplay struct {
	name     string
	grab     grabFunc
	sink     *BufferSink
	interval time.Duration
	density  int

	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	cleanup func() error
}

func startPollingDisplay(name string, grab grabFunc, sink *BufferSink, interval time.Duration, density int, cleanup func() error) *pollingDisplay {
	if interval <= 0 {
		interval = DefaultMirrorInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &pollingDisplay{
		name:     name,
		grab:     grab,
		sink:     sink,
		interval: interval,
		density:  density,
		cancel:   cancel,
		done:     make(chan struct{}),
		cleanup:  cleanup,
	}
	go d.run(ctx)
	return d
}

func (d *pollingDisplay) run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	w, h := d.sink.Size()
	slog.Debug("mirrored display started", "backend", d.name, "width", w, "height", h, "density", d.density)

	d.refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.refresh()
		}
	}
}

func (d *pollingDisplay) refresh() {
	img, err := d.grab()
	if err != nil {
		slog.Debug("display grab failed", "backend", d.name, "error", err)
		return
	}
	if err := d.sink.Write(func(dst *image.RGBA) error { blit(dst, img); return nil }); err != nil && err != ErrReleased {
		slog.Debug("display write failed", "backend", d.name, "error", err)
	}
}

func (d *pollingDisplay) Release() error {
	var err error
	d.once.Do(func() {
		d.cancel()
		<-d.done
		if d.cleanup != nil {
			err = d.cleanup()
		}
		slog.Debug("mirrored display released", "backend", d.name)
	})
	return err
}

// blit copies src into dst, scaling when sizes differ.
func blit(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Dx() == dst.Rect.Dx() && sb.Dy() == dst.Rect.Dy() {
		if rgba, ok := src.(*image.RGBA); ok {
			rowBytes := sb.Dx() * 4
			for y := 0; y < sb.Dy(); y++ {
				s := rgba.PixOffset(sb.Min.X, sb.Min.Y+y)
				copy(dst.Pix[y*dst.Stride:y*dst.Stride+rowBytes], rgba.Pix[s:s+rowBytes])
			}
			return
		}
		xdraw.Draw(dst, dst.Rect, src, sb.Min, xdraw.Src)
		return
	}
	// Nearest neighbour keeps source colors exact, which thresholding relies on.
	xdraw.NearestNeighbor.Scale(dst, dst.Rect, src, sb, xdraw.Src, nil)
}

// wrapMirrorError classifies a platform failure as a resource error.
func wrapMirrorError(err error, backend string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}
	return apperrors.Wrapf(err, apperrors.CodeResourceAllocationFailed, "%s: create mirrored display", backend)
}
