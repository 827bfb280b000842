package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"time"
)

// Default channel thresholds. They select light, yellow-ish text on a dark
// background; other visual styles need other values.
const (
	DefaultRedThreshold   = 150
	DefaultGreenThreshold = 150
	DefaultBlueThreshold  = 100
)

var (
	// Foreground is the output color of a text pixel.
	Foreground = color.Gray{Y: 0xff}
	// Background is the output color of every other pixel.
	Background = color.Gray{Y: 0x00}
)

// Thresholds configure the per-pixel foreground predicate
// red > Red && green > Green && blue < Blue. Comparisons are strict.
type Thresholds struct {
	Red   uint8 `json:"red" yaml:"red"`
	Green uint8 `json:"green" yaml:"green"`
	Blue  uint8 `json:"blue" yaml:"blue"`
}

// DefaultThresholds returns the thresholds tuned for light text on dark backgrounds.
func DefaultThresholds() Thresholds {
	return Thresholds{Red: DefaultRedThreshold, Green: DefaultGreenThreshold, Blue: DefaultBlueThreshold}
}

// Foreground classifies one pixel.
func (t Thresholds) Foreground(r, g, b uint8) bool {
	return r > t.Red && g > t.Green && b < t.Blue
}

// Image is a binarized crop: every pixel is either Foreground or Background.
// It must not be modified after Transform returns it.
type Image struct {
	Gray       *image.Gray
	Region     Region
	CapturedAt time.Time
}

// Bounds returns the image bounds, always anchored at the origin.
func (p *Image) Bounds() image.Rectangle { return p.Gray.Bounds() }

// PNG encodes the image for recognizers that take encoded input.
func (p *Image) PNG() ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, p.Gray); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ForegroundCount returns the number of text pixels.
func (p *Image) ForegroundCount() int {
	n := 0
	for _, v := range p.Gray.Pix {
		if v == Foreground.Y {
			n++
		}
	}
	return n
}
