// Package ocr adapts text-recognition engines to the pipeline.
package ocr

import (
	"context"
	"errors"
	"strings"

	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

// ErrNoText reports a successful recognition that found nothing. It is not
// an engine failure.
var ErrNoText = errors.New("ocr: no text found")

// Engine recognizes text in a binarized image. Implementations must honor
// ctx cancellation where the underlying engine allows it.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img *preprocess.Image) (string, error)
}

// Closer is implemented by engines holding native or network resources.
type Closer interface {
	Close() error
}

// normalize trims engine output and maps blank output to ErrNoText.
func normalize(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
