package ocr

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"

	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/grpcclient"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

var _ grpcclient.RecognizerServer = (*Server)(nil)

// Server serves an Engine over the recognizer gRPC service.
type Server struct {
	engine Engine
}

// NewServer wraps engine.
func NewServer(engine Engine) *Server { return &Server{engine: engine} }

// ExtractText decodes the PNG request and recognizes it. No text found is
// an empty response, not an error.
func (s *Server) ExtractText(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	ctx, span := trace.StartSpan(ctx, "extract_text")
	defer span.End()
	span.SetAttr("engine", s.engine.Name())
	span.SetAttr("bytes", len(req.GetValue()))

	img, err := decodeGray(req.GetValue())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRecognitionFailed, "decode request image")
	}

	text, err := s.engine.Recognize(ctx, img)
	switch {
	case errors.Is(err, ErrNoText):
		return wrapperspb.String(""), nil
	case err != nil:
		span.SetAttr("error", err.Error())
		trace.Logger(ctx).Warn("recognition failed", "error", err)
		if _, ok := err.(*apperrors.AppError); ok {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.CodeRecognitionFailed, s.engine.Name())
	}
	return wrapperspb.String(text), nil
}

func decodeGray(data []byte) (*preprocess.Image, error) {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	gray, ok := src.(*image.Gray)
	if !ok || gray.Rect.Min != (image.Point{}) {
		b := src.Bounds()
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Rect, src, b.Min, draw.Src)
	}
	return &preprocess.Image{Gray: gray}, nil
}
