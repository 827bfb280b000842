//go:build tesseract

package ocr

import (
	"context"
	"sync"

	"github.com/otiai10/gosseract/v2"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

// TesseractEngine runs Tesseract in-process. A gosseract client is not safe
// for concurrent use, so calls are serialized.
type TesseractEngine struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseractEngine creates a Tesseract client for language ("eng", "deu+eng", ...).
func NewTesseractEngine(language string) (*TesseractEngine, error) {
	client := gosseract.NewClient()
	if language != "" {
		if err := client.SetLanguage(language); err != nil {
			client.Close()
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "tesseract language %q", language)
		}
	}
	// The crop holds one block of text.
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "tesseract page segmentation")
	}
	return &TesseractEngine{client: client}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// Recognize runs Tesseract on the crop. Tesseract cannot be interrupted, so
// cancellation is only observed before the call starts.
func (e *TesseractEngine) Recognize(ctx context.Context, img *preprocess.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := img.PNG()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "encode crop")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRecognitionFailed, "tesseract set image")
	}
	text, err := e.client.Text()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeRecognitionFailed, "tesseract")
	}
	return normalize(text)
}

// Close releases the Tesseract client.
func (e *TesseractEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
