package screen

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// ToolPlatform mirrors the screen by shelling out to the OS screenshot tool.
type ToolPlatform struct {
	Interval time.Duration
}

// NewToolPlatform creates a tool-backed platform.
func NewToolPlatform(interval time.Duration) *ToolPlatform {
	return &ToolPlatform{Interval: interval}
}

func (p *ToolPlatform) Name() string { return "tool" }

// DisplaySize grabs once to learn the screen size.
func (p *ToolPlatform) DisplaySize() (int, int, error) {
	dir, err := os.MkdirTemp("", "screen-ocr-probe-*")
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.CodeResourceAllocationFailed, "create temp dir")
	}
	defer os.RemoveAll(dir)

	img, err := toolGrab(dir)
	if err != nil {
		return 0, 0, apperrors.Wrap(err, apperrors.CodeResourceAllocationFailed, "probe display size")
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// Mirror starts grabbing into sink. The temp dir lives until the display is released.
func (p *ToolPlatform) Mirror(grant Grant, sink *BufferSink, density int) (Display, error) {
	if err := grant.Validate(); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp("", "screen-ocr-*")
	if err != nil {
		return nil, wrapMirrorError(err, p.Name())
	}
	grab := func() (image.Image, error) { return toolGrab(dir) }
	cleanup := func() error { return os.RemoveAll(dir) }
	return startPollingDisplay(p.Name(), grab, sink, p.Interval, density, cleanup), nil
}

// runTool runs a screenshot command writing to path and decodes the result.
func runTool(path string, name string, args ...string) (image.Image, error) {
	cmd := exec.Command(name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, stderr.String())
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read screenshot: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func toolPath(dir string) string { return filepath.Join(dir, "screenshot.png") }
