package grpcclient

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

type stubRecognizer struct {
	text     string
	err      error
	language chan string
	traceID  chan string
}

func (s *stubRecognizer) ExtractText(ctx context.Context, img *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	if s.language != nil {
		s.language <- Language(ctx)
	}
	if s.traceID != nil {
		tc, _ := trace.FromContext(ctx)
		s.traceID <- tc.TraceID
	}
	if s.err != nil {
		return nil, s.err
	}
	if len(img.GetValue()) == 0 {
		return wrapperspb.String(""), nil
	}
	return wrapperspb.String(s.text), nil
}

func startServer(t *testing.T, rec RecognizerServer, status healthpb.HealthCheckResponse_ServingStatus) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	RegisterRecognizerServer(srv, rec)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, status)
	healthpb.RegisterHealthServer(srv, hs)

	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultConfig()
	cfg.HealthCheckInterval = 0
	c, err := New("passthrough:///bufnet", cfg,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.KeepaliveTime != 10*time.Second {
		t.Errorf("KeepaliveTime = %v, want 10s", cfg.KeepaliveTime)
	}
	if cfg.KeepaliveTimeout != 3*time.Second {
		t.Errorf("KeepaliveTimeout = %v, want 3s", cfg.KeepaliveTimeout)
	}
	if cfg.HealthCheckInterval != 5*time.Second {
		t.Errorf("HealthCheckInterval = %v, want 5s", cfg.HealthCheckInterval)
	}
}

func TestExtractText(t *testing.T) {
	rec := &stubRecognizer{text: "OK", language: make(chan string, 1)}
	c := startServer(t, rec, healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := c.ExtractText(ctx, []byte{0x89, 'P', 'N', 'G'}, "eng")
	if err != nil {
		t.Fatalf("ExtractText() = %v", err)
	}
	if text != "OK" {
		t.Errorf("text = %q, want OK", text)
	}
	if got := <-rec.language; got != "eng" {
		t.Errorf("server saw language %q, want eng", got)
	}
}

func TestExtractTextEmpty(t *testing.T) {
	c := startServer(t, &stubRecognizer{text: "ignored"}, healthpb.HealthCheckResponse_SERVING)

	text, err := c.ExtractText(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("ExtractText() = %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestExtractTextErrorKeepsCode(t *testing.T) {
	rec := &stubRecognizer{err: apperrors.New(apperrors.CodeRecognitionFailed, "model crashed")}
	c := startServer(t, rec, healthpb.HealthCheckResponse_SERVING)

	_, err := c.ExtractText(context.Background(), []byte{1}, "")
	if !apperrors.IsCode(err, apperrors.CodeRecognitionFailed) {
		t.Errorf("ExtractText() = %v, want RECOGNITION_FAILED", err)
	}
}

func TestTracePropagates(t *testing.T) {
	rec := &stubRecognizer{text: "OK", traceID: make(chan string, 1)}
	c := startServer(t, rec, healthpb.HealthCheckResponse_SERVING)

	ctx, span := trace.StartSpan(context.Background(), "recognize")
	defer span.End()
	if _, err := c.ExtractText(ctx, []byte{1}, ""); err != nil {
		t.Fatal(err)
	}
	if got := <-rec.traceID; got != span.Ctx.TraceID {
		t.Errorf("server trace id = %q, want %q", got, span.Ctx.TraceID)
	}
}

func TestCheckAndWaitReady(t *testing.T) {
	c := startServer(t, &stubRecognizer{}, healthpb.HealthCheckResponse_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() = %v", err)
	}
	if !c.Healthy() {
		t.Error("Healthy() = false after WaitReady")
	}
}

func TestCheckNotServing(t *testing.T) {
	c := startServer(t, &stubRecognizer{}, healthpb.HealthCheckResponse_NOT_SERVING)

	err := c.Check(context.Background())
	if !apperrors.IsCode(err, apperrors.CodeUnavailable) {
		t.Errorf("Check() = %v, want UNAVAILABLE", err)
	}
}

func TestLanguageWithoutMetadata(t *testing.T) {
	if got := Language(context.Background()); got != "" {
		t.Errorf("Language() = %q, want empty", got)
	}
}
