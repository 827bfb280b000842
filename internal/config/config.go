// Package config loads service configuration from the environment, an
// optional .env file, and an optional YAML capture profile.
package config

import (
	"encoding/base64"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
	"github.com/GriffinCanCode/screen-ocr/internal/preprocess"
	"github.com/GriffinCanCode/screen-ocr/internal/screen"
)

// Engine and backend names.
const (
	EngineGRPC      = "grpc"
	EngineTesseract = "tesseract"
	EngineEcho      = "echo"

	BackendScreenshot = "screenshot"
	BackendTool       = "tool"
	BackendStill      = "still"
)

// DefaultRegion is the status-text area on a 1920x1080 display.
const DefaultRegion = "1344,393,1504,658"

type Config struct {
	HTTPAddr string

	OCREngine   string
	OCRAddr     string
	OCRTimeout  time.Duration
	OCRLanguage string

	CaptureBackend   string
	CaptureDisplay   int
	CaptureStillPath string
	CaptureWidth     int // 0 = display width
	CaptureHeight    int // 0 = display height
	CaptureDensity   int
	MirrorInterval   time.Duration
	CaptureInterval  time.Duration

	Region     preprocess.Region
	Thresholds preprocess.Thresholds

	GrantResultCode int
	GrantPayload    string // base64

	SkipUnchanged bool
	StreamFrames  bool

	SnapshotDir      string
	SnapshotInterval time.Duration

	HistoryDB         string
	HistoryMaxEntries int

	LogLevel string
}

// Profile is the YAML overlay named by CONFIG_FILE. Fields it sets replace
// the environment values.
type Profile struct {
	Region        *preprocess.Region     `yaml:"region"`
	Thresholds    *preprocess.Thresholds `yaml:"thresholds"`
	IntervalMs    *int                   `yaml:"interval_ms"`
	SkipUnchanged *bool                  `yaml:"skip_unchanged"`
	StreamFrames  *bool                  `yaml:"stream_frames"`
}

// Load reads .env (if present), the environment, and CONFIG_FILE (if set).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	region, err := preprocess.ParseRegion(getEnv("REGION", DefaultRegion))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8000"),
		OCREngine:         getEnv("OCR_ENGINE", EngineGRPC),
		OCRAddr:           getEnv("OCR_ADDR", "localhost:50051"),
		OCRTimeout:        getEnvDuration("OCR_TIMEOUT", 5*time.Second),
		OCRLanguage:       getEnv("OCR_LANGUAGE", "eng"),
		CaptureBackend:    getEnv("CAPTURE_BACKEND", BackendScreenshot),
		CaptureDisplay:    getEnvInt("CAPTURE_DISPLAY", 0),
		CaptureStillPath:  getEnv("CAPTURE_STILL_PATH", ""),
		CaptureWidth:      getEnvInt("CAPTURE_WIDTH", 0),
		CaptureHeight:     getEnvInt("CAPTURE_HEIGHT", 0),
		CaptureDensity:    getEnvInt("CAPTURE_DENSITY", 160),
		MirrorInterval:    getEnvDuration("CAPTURE_MIRROR_INTERVAL", screen.DefaultMirrorInterval),
		CaptureInterval:   time.Duration(getEnvInt("CAPTURE_INTERVAL_MS", 1000)) * time.Millisecond,
		Region:            region,
		Thresholds:        getEnvThresholds(),
		GrantResultCode:   getEnvInt("GRANT_RESULT_CODE", screen.ResultOK),
		GrantPayload:      getEnv("GRANT_PAYLOAD", ""),
		SkipUnchanged:     getEnvBool("SKIP_UNCHANGED", false),
		StreamFrames:      getEnvBool("STREAM_FRAMES", false),
		SnapshotDir:       getEnv("SNAPSHOT_DIR", ""),
		SnapshotInterval:  getEnvDuration("SNAPSHOT_INTERVAL", 5*time.Second),
		HistoryDB:         getEnv("HISTORY_DB", ""),
		HistoryMaxEntries: getEnvInt("HISTORY_MAX_ENTRIES", 50),
		LogLevel:          getEnv("LOG_LEVEL", "debug"),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// ApplyFile overlays the YAML profile at path.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read config file %s", path)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "parse config file %s", path)
	}
	c.Apply(p)
	return nil
}

// Apply overlays the fields p sets.
func (c *Config) Apply(p Profile) {
	if p.Region != nil {
		c.Region = *p.Region
	}
	if p.Thresholds != nil {
		c.Thresholds = *p.Thresholds
	}
	if p.IntervalMs != nil {
		c.CaptureInterval = time.Duration(*p.IntervalMs) * time.Millisecond
	}
	if p.SkipUnchanged != nil {
		c.SkipUnchanged = *p.SkipUnchanged
	}
	if p.StreamFrames != nil {
		c.StreamFrames = *p.StreamFrames
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.OCREngine {
	case EngineGRPC, EngineTesseract, EngineEcho:
	default:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "unknown OCR_ENGINE %q", c.OCREngine)
	}
	switch c.CaptureBackend {
	case BackendScreenshot, BackendTool:
	case BackendStill:
		if c.CaptureStillPath == "" {
			return apperrors.New(apperrors.CodeConfigInvalid, "CAPTURE_BACKEND=still requires CAPTURE_STILL_PATH")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigInvalid, "unknown CAPTURE_BACKEND %q", c.CaptureBackend)
	}
	if c.CaptureInterval <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "capture interval must be positive, got %s", c.CaptureInterval)
	}
	if c.CaptureDensity <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "CAPTURE_DENSITY must be positive, got %d", c.CaptureDensity)
	}
	if c.CaptureWidth < 0 || c.CaptureHeight < 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "capture size %dx%d is negative", c.CaptureWidth, c.CaptureHeight)
	}
	if c.HistoryMaxEntries <= 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "HISTORY_MAX_ENTRIES must be positive, got %d", c.HistoryMaxEntries)
	}
	if _, err := c.Grant(); err != nil {
		return err
	}
	if c.CaptureWidth > 0 && c.CaptureHeight > 0 {
		return c.Region.Fits(c.CaptureWidth, c.CaptureHeight)
	}
	return c.Region.Validate()
}

// Grant returns the configured capture grant.
func (c *Config) Grant() (screen.Grant, error) {
	payload, err := base64.StdEncoding.DecodeString(c.GrantPayload)
	if err != nil {
		return screen.Grant{}, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "GRANT_PAYLOAD is not base64")
	}
	return screen.Grant{ResultCode: c.GrantResultCode, Payload: payload}, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to debug.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return l
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvUint8(key string, def uint8) uint8 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseUint(v, 10, 8); err == nil {
			return uint8(i)
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvThresholds() preprocess.Thresholds {
	d := preprocess.DefaultThresholds()
	return preprocess.Thresholds{
		Red:   getEnvUint8("THRESHOLD_RED", d.Red),
		Green: getEnvUint8("THRESHOLD_GREEN", d.Green),
		Blue:  getEnvUint8("THRESHOLD_BLUE", d.Blue),
	}
}
