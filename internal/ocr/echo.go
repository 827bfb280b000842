package ocr

import (
	"context"

	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

// DefaultEchoText is what EchoEngine reports for an image with text pixels.
const DefaultEchoText = "OK"

// EchoEngine reports a fixed string whenever the image has any foreground
// pixel and ErrNoText otherwise. It stands in for a real engine in dry runs
// and serves the echo-recognizer binary.
type EchoEngine struct {
	Text string
}

// NewEchoEngine returns an engine echoing DefaultEchoText.
func NewEchoEngine() *EchoEngine { return &EchoEngine{Text: DefaultEchoText} }

func (e *EchoEngine) Name() string { return "echo" }

func (e *EchoEngine) Recognize(ctx context.Context, img *preprocess.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if img == nil || img.ForegroundCount() == 0 {
		return "", ErrNoText
	}
	return normalize(e.Text)
}
