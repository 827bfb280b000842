package preprocess

import (
	"image"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// Preprocessor holds a region and thresholds validated once at configuration time.
type Preprocessor struct {
	region     Region
	thresholds Thresholds
}

// New validates region against the frame size it will be applied to.
// A zero width or height skips the bounds check; Transform still enforces it.
func New(region Region, thresholds Thresholds, frameWidth, frameHeight int) (*Preprocessor, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if frameWidth > 0 && frameHeight > 0 {
		if err := region.Fits(frameWidth, frameHeight); err != nil {
			return nil, err
		}
	}
	return &Preprocessor{region: region, thresholds: thresholds}, nil
}

// Region returns the configured region.
func (p *Preprocessor) Region() Region { return p.region }

// Thresholds returns the configured thresholds.
func (p *Preprocessor) Thresholds() Thresholds { return p.thresholds }

// Transform crops and binarizes frame.
func (p *Preprocessor) Transform(frame *image.RGBA, capturedAt time.Time) (*Image, error) {
	return Transform(frame, p.region, p.thresholds, capturedAt)
}

// Transform copies region out of frame and binarizes it. Region coordinates
// are relative to the frame's origin. Rows may carry padding (Stride > width*4).
func Transform(frame *image.RGBA, region Region, t Thresholds, capturedAt time.Time) (*Image, error) {
	if frame == nil {
		return nil, apperrors.New(apperrors.CodeInternal, "nil frame")
	}
	b := frame.Bounds()
	if err := region.Fits(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	w, h := region.Width(), region.Height()
	out := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := frame.Pix[frame.PixOffset(b.Min.X+region.Left, b.Min.Y+region.Top+y):]
		dst := out.Pix[y*out.Stride : y*out.Stride+w]
		for x := range dst {
			i := x * 4
			if t.Foreground(src[i], src[i+1], src[i+2]) {
				dst[x] = Foreground.Y
			} else {
				dst[x] = Background.Y
			}
		}
	}
	return &Image{Gray: out, Region: region, CapturedAt: capturedAt}, nil
}
