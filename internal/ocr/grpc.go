package ocr

import (
	"context"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/grpcclient"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

// RemoteRecognizer is the subset of grpcclient.Client the engine needs.
type RemoteRecognizer interface {
	ExtractText(ctx context.Context, png []byte, language string) (string, error)
}

var _ RemoteRecognizer = (*grpcclient.Client)(nil)

// GRPCEngine sends PNG-encoded crops to a remote recognizer.
type GRPCEngine struct {
	client   RemoteRecognizer
	language string
}

// NewGRPCEngine wraps a remote recognizer client.
func NewGRPCEngine(client RemoteRecognizer, language string) *GRPCEngine {
	return &GRPCEngine{client: client, language: language}
}

func (e *GRPCEngine) Name() string { return "grpc" }

func (e *GRPCEngine) Recognize(ctx context.Context, img *preprocess.Image) (string, error) {
	data, err := img.PNG()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeInternal, "encode crop")
	}
	text, err := e.client.ExtractText(ctx, data, e.language)
	if err != nil {
		return "", err
	}
	return normalize(text)
}

// Close closes the client if it owns a connection.
func (e *GRPCEngine) Close() error {
	if c, ok := e.client.(Closer); ok {
		return c.Close()
	}
	return nil
}
