//go:build !tesseract

package ocr

import (
	"context"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

// ErrTesseractNotEnabled is returned when the binary was built without the
// tesseract tag. Rebuild with -tags tesseract; this needs libtesseract.
var ErrTesseractNotEnabled = apperrors.New(apperrors.CodeConfigInvalid, "tesseract support not enabled; rebuild with -tags tesseract")

// TesseractEngine is unavailable in this build.
type TesseractEngine struct{}

// NewTesseractEngine always fails in this build.
func NewTesseractEngine(string) (*TesseractEngine, error) {
	return nil, ErrTesseractNotEnabled
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(context.Context, *preprocess.Image) (string, error) {
	return "", ErrTesseractNotEnabled
}

func (e *TesseractEngine) Close() error { return nil }
