// Echo recognizer - a gRPC text recognizer that answers "OK" for any image
// with foreground pixels, for wiring tests and local runs
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/screen-ocr/internal/grpcclient"
	"github.com/GriffinCanCode/screen-ocr/internal/ocr"
	"github.com/GriffinCanCode/screen-ocr/internal/trace"
)

func main() {
	addr := flag.String("addr", ":50051", "listen address")
	text := flag.String("text", ocr.DefaultEchoText, "text returned for non-blank images")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		slog.Error("listen failed", "addr", *addr, "error", err)
		os.Exit(1)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.MaxRecvMsgSize(grpcclient.MaxMessageSize),
	)
	grpcclient.RegisterRecognizerServer(s, ocr.NewServer(&ocr.EchoEngine{Text: *text}))

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(grpcclient.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		slog.Info("shutting down...")
		hs.Shutdown()
		s.GracefulStop()
	}()

	slog.Info("echo recognizer listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil {
		slog.Error("serve error", "error", err)
		os.Exit(1)
	}
}
