package screen

import (
	"errors"
	"image"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// Sink limits.
const (
	// DefaultMaxImages matches a two-image RGBA reader: one slot may be held
	// by the consumer while the producer writes the other.
	DefaultMaxImages = 2

	// maxSinkPixels caps a single slot at 8K resolution.
	maxSinkPixels = 7680 * 4320
)

// ErrReleased is returned when a released sink or adapter is used.
var ErrReleased = errors.New("screen: resource released")

type slot struct {
	img        *image.RGBA
	held       bool
	writing    bool
	capturedAt time.Time
	seq        uint64
}

// BufferSink is a fixed set of RGBA buffer slots. A display writes frames
// into it and the consumer reads the most recently completed slot.
type BufferSink struct {
	mu      sync.Mutex
	width   int
	height  int
	stride  int
	slots   []*slot
	latest  int
	seq     uint64
	closed  bool
	dropped uint64
}

// NewBufferSink allocates maxImages slots of width x height. rowPadding adds
// bytes at the end of each row, as hardware-aligned readers do.
func NewBufferSink(width, height, maxImages, rowPadding int) (*BufferSink, error) {
	if width <= 0 || height <= 0 || width*height > maxSinkPixels {
		return nil, apperrors.Newf(apperrors.CodeResourceAllocationFailed, "cannot allocate %dx%d pixel buffer", width, height)
	}
	if maxImages < 2 {
		return nil, apperrors.Newf(apperrors.CodeResourceAllocationFailed, "pixel buffer needs at least 2 slots, got %d", maxImages)
	}
	if rowPadding < 0 {
		rowPadding = 0
	}

	s := &BufferSink{width: width, height: height, stride: width*4 + rowPadding, latest: -1}
	s.slots = make([]*slot, maxImages)
	for i := range s.slots {
		s.slots[i] = &slot{img: acquireBuffer(width, height, s.stride)}
	}
	return s, nil
}

// Size returns the slot dimensions.
func (s *BufferSink) Size() (width, height int) { return s.width, s.height }

// Dropped returns how many writes found no free slot.
func (s *BufferSink) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Write fills a free slot and publishes it as the latest frame. When every
// slot is latest, held, or being written, the write is dropped.
func (s *BufferSink) Write(fill func(dst *image.RGBA) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrReleased
	}
	idx := -1
	for i, sl := range s.slots {
		if i != s.latest && !sl.held && !sl.writing {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.dropped++
		s.mu.Unlock()
		return nil
	}
	sl := s.slots[idx]
	sl.writing = true
	s.mu.Unlock()

	err := fill(sl.img)

	s.mu.Lock()
	defer s.mu.Unlock()
	sl.writing = false
	if s.closed {
		recycleBuffer(sl.img)
		sl.img = nil
		return ErrReleased
	}
	if err != nil {
		return err
	}
	s.seq++
	sl.seq = s.seq
	sl.capturedAt = time.Now()
	s.latest = idx
	return nil
}

// AcquireLatest returns the most recently written slot without consuming it.
// ok is false when nothing has been written yet or the latest slot is
// already held.
func (s *BufferSink) AcquireLatest() (frame *RawFrame, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrReleased
	}
	if s.latest < 0 {
		return nil, false, nil
	}
	sl := s.slots[s.latest]
	if sl.held {
		return nil, false, nil
	}
	sl.held = true
	return &RawFrame{
		Image:      sl.img,
		CapturedAt: sl.capturedAt,
		Sequence:   sl.seq,
		release:    func() { s.releaseSlot(sl) },
	}, true, nil
}

func (s *BufferSink) releaseSlot(sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.held = false
	if s.closed && sl.img != nil {
		recycleBuffer(sl.img)
		sl.img = nil
	}
}

// Close releases every slot not currently held or being written; those are
// released when their holder lets go. Safe to call more than once.
func (s *BufferSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.latest = -1
	for _, sl := range s.slots {
		if !sl.held && !sl.writing && sl.img != nil {
			recycleBuffer(sl.img)
			sl.img = nil
		}
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *BufferSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
