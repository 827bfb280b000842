// Capture server - mirrors the screen, recognizes a fixed region, and
// delivers results over HTTP and WebSocket
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/screen-ocr/internal/config"
	"github.com/GriffinCanCode/screen-ocr/internal/grpcclient"
	"github.com/GriffinCanCode/screen-ocr/internal/history"
	"github.com/GriffinCanCode/screen-ocr/internal/ocr"
	"github.com/GriffinCanCode/screen-ocr/internal/orchestrator"
	"github.com/GriffinCanCode/screen-ocr/internal/orchestrator/results"
	"github.com/GriffinCanCode/screen-ocr/internal/screen"
	"github.com/GriffinCanCode/screen-ocr/internal/server"
	"github.com/GriffinCanCode/screen-ocr/internal/snapshot"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	platform, err := newPlatform(cfg)
	if err != nil {
		slog.Error("failed to create capture backend", "backend", cfg.CaptureBackend, "error", err)
		os.Exit(1)
	}

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		slog.Error("failed to create OCR engine", "engine", cfg.OCREngine, "error", err)
		os.Exit(1)
	}
	if c, ok := engine.(ocr.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	var opts []orchestrator.Option

	var persist results.Persister
	if cfg.HistoryDB != "" {
		db, err := history.Open(cfg.HistoryDB, cfg.HistoryMaxEntries)
		if err != nil {
			slog.Error("failed to open history", "path", cfg.HistoryDB, "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		persist = db
	}
	store := results.NewStore(cfg.HistoryMaxEntries, persist)
	if err := store.Load(ctx); err != nil {
		slog.Warn("failed to load result history", "error", err)
	}
	opts = append(opts, orchestrator.WithResults(store))

	var snaps *snapshot.Writer
	if cfg.SnapshotDir != "" {
		snaps, err = snapshot.New(cfg.SnapshotDir, cfg.SnapshotInterval)
		if err != nil {
			slog.Error("failed to create snapshot dir", "dir", cfg.SnapshotDir, "error", err)
			os.Exit(1)
		}
		opts = append(opts, orchestrator.WithSnapshots(snaps))
	}

	// Create orchestrator
	orch := orchestrator.New(platform, engine, cfg, opts...)

	// Create HTTP/WebSocket server
	srv := server.New(orch, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("capture server starting",
			"http", cfg.HTTPAddr,
			"backend", platform.Name(),
			"engine", engine.Name(),
			"region", cfg.Region.String(),
			"interval", cfg.CaptureInterval)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	srv.Close()
	if err := orch.Close(); err != nil {
		slog.Error("capture stop error", "error", err)
	}
	if snaps != nil {
		snaps.Wait()
	}
	slog.Info("shutdown complete")
}

// newPlatform selects the display-mirroring backend.
func newPlatform(cfg *config.Config) (screen.Platform, error) {
	switch cfg.CaptureBackend {
	case config.BackendTool:
		return screen.NewToolPlatform(cfg.MirrorInterval), nil
	case config.BackendStill:
		return screen.LoadStillPlatform(cfg.CaptureStillPath, cfg.MirrorInterval)
	default:
		return screen.NewDesktopPlatform(cfg.CaptureDisplay, cfg.MirrorInterval), nil
	}
}

// newEngine selects the text recognizer. A remote recognizer must report
// healthy before the server starts.
func newEngine(ctx context.Context, cfg *config.Config) (ocr.Engine, error) {
	switch cfg.OCREngine {
	case config.EngineEcho:
		return ocr.NewEchoEngine(), nil
	case config.EngineTesseract:
		return ocr.NewTesseractEngine(cfg.OCRLanguage)
	default:
		client, err := grpcclient.New(cfg.OCRAddr, grpcclient.DefaultConfig())
		if err != nil {
			return nil, err
		}
		if err := client.WaitReady(ctx); err != nil {
			_ = client.Close()
			return nil, err
		}
		slog.Info("connected to recognizer", "addr", cfg.OCRAddr)
		return ocr.NewGRPCEngine(client, cfg.OCRLanguage), nil
	}
}
