package screen

import (
	"image"
	"time"

	"github.com/kbinani/screenshot"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// DesktopPlatform mirrors an active desktop display.
type DesktopPlatform struct {
	DisplayIndex int
	Interval     time.Duration
}

// NewDesktopPlatform creates a platform for the given display index.
func NewDesktopPlatform(displayIndex int, interval time.Duration) *DesktopPlatform {
	return &DesktopPlatform{DisplayIndex: displayIndex, Interval: interval}
}

func (p *DesktopPlatform) Name() string { return "screenshot" }

func (p *DesktopPlatform) bounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, apperrors.New(apperrors.CodeResourceAllocationFailed, "no active displays found")
	}
	if p.DisplayIndex < 0 || p.DisplayIndex >= n {
		return image.Rectangle{}, apperrors.Newf(apperrors.CodeResourceAllocationFailed, "display %d not found (%d active)", p.DisplayIndex, n)
	}
	return screenshot.GetDisplayBounds(p.DisplayIndex), nil
}

// DisplaySize reports the selected display's size.
func (p *DesktopPlatform) DisplaySize() (int, int, error) {
	b, err := p.bounds()
	if err != nil {
		return 0, 0, err
	}
	return b.Dx(), b.Dy(), nil
}

// Mirror starts copying the display into sink.
func (p *DesktopPlatform) Mirror(grant Grant, sink *BufferSink, density int) (Display, error) {
	if err := grant.Validate(); err != nil {
		return nil, err
	}
	b, err := p.bounds()
	if err != nil {
		return nil, err
	}
	grab := func() (image.Image, error) { return screenshot.CaptureRect(b) }
	return startPollingDisplay(p.Name(), grab, sink, p.Interval, density, nil), nil
}
