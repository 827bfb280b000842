package screen

import (
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"os"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// StillPlatform replays one image as the mirrored screen. It backs replay
// runs against a saved screenshot and the pipeline tests.
type StillPlatform struct {
	img      image.Image
	interval time.Duration
}

// NewStillPlatform mirrors img.
func NewStillPlatform(img image.Image, interval time.Duration) *StillPlatform {
	return &StillPlatform{img: img, interval: interval}
}

// LoadStillPlatform decodes a PNG or JPEG file to mirror.
func LoadStillPlatform(path string, interval time.Duration) (*StillPlatform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "open still image %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "decode still image %s", path)
	}
	return NewStillPlatform(img, interval), nil
}

func (p *StillPlatform) Name() string { return "still" }

// DisplaySize reports the image size.
func (p *StillPlatform) DisplaySize() (int, int, error) {
	b := p.img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// Mirror starts writing the image into sink.
func (p *StillPlatform) Mirror(grant Grant, sink *BufferSink, density int) (Display, error) {
	if err := grant.Validate(); err != nil {
		return nil, err
	}
	grab := func() (image.Image, error) { return p.img, nil }
	return startPollingDisplay(p.Name(), grab, sink, p.interval, density, nil), nil
}
