// Package snapshot saves captured frames to disk as JPEG files. Saving is a
// side effect only; failures are logged and never stop capture.
package snapshot

import (
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

const (
	// DefaultMinInterval limits how often frames are saved.
	DefaultMinInterval = 5 * time.Second
	// Quality is the JPEG quality.
	Quality = 90

	nameLayout = "Screenshot_20060102_150405.jpg"
)

// FileName returns the snapshot file name for a capture time.
func FileName(at time.Time) string { return at.Format(nameLayout) }

// Writer saves at most one frame per MinInterval into a directory.
type Writer struct {
	dir         string
	minInterval time.Duration
	last        atomic.Int64 // unix nano of the last accepted frame
	wg          sync.WaitGroup
}

// New creates dir if needed.
func New(dir string, minInterval time.Duration) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "snapshot dir %s", dir)
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Writer{dir: dir, minInterval: minInterval}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// claim reserves the slot for a frame captured at at.
func (w *Writer) claim(at time.Time) bool {
	for {
		last := w.last.Load()
		if last != 0 && at.Sub(time.Unix(0, last)) < w.minInterval {
			return false
		}
		if w.last.CompareAndSwap(last, at.UnixNano()) {
			return true
		}
	}
}

// Save writes img synchronously and returns the file path.
func (w *Writer) Save(img image.Image, at time.Time) (string, error) {
	path := filepath.Join(w.dir, FileName(at))
	if err := imaging.Save(img, path, imaging.JPEGQuality(Quality)); err != nil {
		return "", apperrors.Wrapf(err, apperrors.CodeInternal, "save snapshot %s", path)
	}
	return path, nil
}

// Offer saves a copy of img in the background if the interval has passed.
// img may be reused by the caller as soon as Offer returns.
func (w *Writer) Offer(img image.Image, at time.Time) bool {
	if !w.claim(at) {
		return false
	}
	clone := imaging.Clone(img)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		path, err := w.Save(clone, at)
		if err != nil {
			slog.Warn("snapshot failed", "error", err)
			return
		}
		slog.Debug("snapshot saved", "path", path)
	}()
	return true
}

// Wait blocks until background saves finish.
func (w *Writer) Wait() { w.wg.Wait() }
