package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
)

var envKeys = []string{
	"HTTP_ADDR", "OCR_ENGINE", "OCR_ADDR", "OCR_TIMEOUT", "OCR_LANGUAGE",
	"CAPTURE_BACKEND", "CAPTURE_DISPLAY", "CAPTURE_STILL_PATH", "CAPTURE_WIDTH",
	"CAPTURE_HEIGHT", "CAPTURE_DENSITY", "CAPTURE_MIRROR_INTERVAL", "CAPTURE_INTERVAL_MS",
	"REGION", "THRESHOLD_RED", "THRESHOLD_GREEN", "THRESHOLD_BLUE",
	"GRANT_RESULT_CODE", "GRANT_PAYLOAD", "SKIP_UNCHANGED", "STREAM_FRAMES",
	"SNAPSHOT_DIR", "SNAPSHOT_INTERVAL", "HISTORY_DB", "HISTORY_MAX_ENTRIES",
	"LOG_LEVEL", "CONFIG_FILE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8000")
	}
	if cfg.OCREngine != EngineGRPC {
		t.Errorf("OCREngine = %q, want %q", cfg.OCREngine, EngineGRPC)
	}
	if cfg.OCRAddr != "localhost:50051" {
		t.Errorf("OCRAddr = %q", cfg.OCRAddr)
	}
	if cfg.OCRTimeout != 5*time.Second {
		t.Errorf("OCRTimeout = %v", cfg.OCRTimeout)
	}
	if cfg.CaptureInterval != time.Second {
		t.Errorf("CaptureInterval = %v, want 1s", cfg.CaptureInterval)
	}
	want := preprocess.Region{Left: 1344, Top: 393, Right: 1504, Bottom: 658}
	if cfg.Region != want {
		t.Errorf("Region = %v, want %v", cfg.Region, want)
	}
	if cfg.Thresholds != preprocess.DefaultThresholds() {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.GrantResultCode != -1 {
		t.Errorf("GrantResultCode = %d, want -1", cfg.GrantResultCode)
	}
	if cfg.CaptureDensity != 160 {
		t.Errorf("CaptureDensity = %d, want 160", cfg.CaptureDensity)
	}
	if cfg.HistoryMaxEntries != 50 {
		t.Errorf("HistoryMaxEntries = %d, want 50", cfg.HistoryMaxEntries)
	}
	if cfg.SkipUnchanged || cfg.StreamFrames {
		t.Error("optional features should default to off")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("OCR_ENGINE", "echo")
	t.Setenv("OCR_TIMEOUT", "2s")
	t.Setenv("CAPTURE_INTERVAL_MS", "250")
	t.Setenv("REGION", "10, 20, 110, 70")
	t.Setenv("THRESHOLD_RED", "200")
	t.Setenv("THRESHOLD_BLUE", "300") // out of range, keeps default
	t.Setenv("SKIP_UNCHANGED", "1")
	t.Setenv("STREAM_FRAMES", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.OCREngine != EngineEcho {
		t.Errorf("HTTPAddr/OCREngine = %q/%q", cfg.HTTPAddr, cfg.OCREngine)
	}
	if cfg.OCRTimeout != 2*time.Second {
		t.Errorf("OCRTimeout = %v", cfg.OCRTimeout)
	}
	if cfg.CaptureInterval != 250*time.Millisecond {
		t.Errorf("CaptureInterval = %v", cfg.CaptureInterval)
	}
	if cfg.Region != (preprocess.Region{Left: 10, Top: 20, Right: 110, Bottom: 70}) {
		t.Errorf("Region = %v", cfg.Region)
	}
	if cfg.Thresholds.Red != 200 || cfg.Thresholds.Blue != preprocess.DefaultBlueThreshold {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if !cfg.SkipUnchanged || !cfg.StreamFrames {
		t.Error("SKIP_UNCHANGED and STREAM_FRAMES should be on")
	}
}

func TestLoadBadRegion(t *testing.T) {
	clearEnv(t)
	t.Setenv("REGION", "1,2,3")

	_, err := Load()
	if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("Load() error = %v, want CONFIG_INVALID", err)
	}
}

func TestApplyFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "profile.yaml")
	profile := `
region:
  left: 0
  top: 0
  right: 64
  bottom: 32
thresholds:
  red: 100
  green: 110
  blue: 120
interval_ms: 500
skip_unchanged: true
`
	if err := os.WriteFile(path, []byte(profile), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Region != (preprocess.Region{Right: 64, Bottom: 32}) {
		t.Errorf("Region = %v", cfg.Region)
	}
	if cfg.Thresholds != (preprocess.Thresholds{Red: 100, Green: 110, Blue: 120}) {
		t.Errorf("Thresholds = %+v", cfg.Thresholds)
	}
	if cfg.CaptureInterval != 500*time.Millisecond {
		t.Errorf("CaptureInterval = %v", cfg.CaptureInterval)
	}
	if !cfg.SkipUnchanged {
		t.Error("profile should enable SkipUnchanged")
	}
	if cfg.StreamFrames {
		t.Error("fields absent from the profile should keep env values")
	}
}

func TestApplyFileErrors(t *testing.T) {
	cfg := &Config{}
	if err := cfg.ApplyFile(filepath.Join(t.TempDir(), "missing.yaml")); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("missing file error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("region: [1, 2"), 0o644)
	if err := cfg.ApplyFile(path); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("bad yaml error = %v", err)
	}
}

func validConfig() *Config {
	return &Config{
		OCREngine:         EngineEcho,
		CaptureBackend:    BackendScreenshot,
		CaptureDensity:    160,
		CaptureInterval:   time.Second,
		HistoryMaxEntries: 50,
		GrantResultCode:   -1,
		Region:            preprocess.Region{Left: 1344, Top: 393, Right: 1504, Bottom: 658},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   apperrors.Code
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown engine", func(c *Config) { c.OCREngine = "magic" }, apperrors.CodeConfigInvalid},
		{"unknown backend", func(c *Config) { c.CaptureBackend = "vnc" }, apperrors.CodeConfigInvalid},
		{"still without path", func(c *Config) { c.CaptureBackend = BackendStill }, apperrors.CodeConfigInvalid},
		{"zero interval", func(c *Config) { c.CaptureInterval = 0 }, apperrors.CodeConfigInvalid},
		{"negative interval", func(c *Config) { c.CaptureInterval = -time.Second }, apperrors.CodeConfigInvalid},
		{"zero density", func(c *Config) { c.CaptureDensity = 0 }, apperrors.CodeConfigInvalid},
		{"empty region", func(c *Config) { c.Region = preprocess.Region{Left: 5, Right: 5, Bottom: 1} }, apperrors.CodeConfigInvalid},
		{"region outside capture size", func(c *Config) { c.CaptureWidth, c.CaptureHeight = 1280, 720 }, apperrors.CodeRegionOutOfBounds},
		{"region inside capture size", func(c *Config) { c.CaptureWidth, c.CaptureHeight = 1920, 1080 }, ""},
		{"bad payload", func(c *Config) { c.GrantPayload = "%%%" }, apperrors.CodeConfigInvalid},
		{"zero history", func(c *Config) { c.HistoryMaxEntries = 0 }, apperrors.CodeConfigInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !apperrors.IsCode(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
			if !apperrors.IsConfiguration(err) {
				t.Errorf("%v should be a configuration error", err)
			}
		})
	}
}

func TestGrant(t *testing.T) {
	cfg := validConfig()
	cfg.GrantPayload = "aGVsbG8="

	g, err := cfg.Grant()
	if err != nil {
		t.Fatal(err)
	}
	if g.ResultCode != -1 || string(g.Payload) != "hello" {
		t.Errorf("Grant() = %+v", g)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelDebug,
		"info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"loud":  slog.LevelDebug,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	t.Setenv("TEST_INT_INVALID", "not-a-number")
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	t.Setenv("TEST_DURATION", "1500ms")
	if v := getEnvDuration("TEST_DURATION", 0); v != 1500*time.Millisecond {
		t.Errorf("getEnvDuration = %v", v)
	}
	t.Setenv("TEST_UINT8", "256")
	if v := getEnvUint8("TEST_UINT8", 7); v != 7 {
		t.Errorf("getEnvUint8 overflow = %d, want default", v)
	}

	t.Setenv("TEST_BOOL_ONE", "1")
	if !getEnvBool("TEST_BOOL_ONE", false) {
		t.Error("getEnvBool should return true for '1'")
	}
	if !getEnvBool("NONEXISTENT", true) {
		t.Error("getEnvBool should return default true")
	}
}
