package screen

import (
	"image"
	"sync"
	"time"
)

// RawFrame is one acquired buffer slot. The pixel buffer belongs to the sink;
// callers must Release the frame before the next acquisition and must not
// touch Image afterwards.
type RawFrame struct {
	Image      *image.RGBA
	CapturedAt time.Time
	Sequence   uint64

	once    sync.Once
	release func()
}

// Width returns the frame width in pixels.
func (f *RawFrame) Width() int { return f.Image.Rect.Dx() }

// Height returns the frame height in pixels.
func (f *RawFrame) Height() int { return f.Image.Rect.Dy() }

// Release hands the slot back to the sink. Safe to call more than once.
func (f *RawFrame) Release() {
	if f == nil {
		return
	}
	f.once.Do(func() {
		if f.release != nil {
			f.release()
		}
		f.Image = nil
	})
}

// bufferPool keeps slot buffers alive across capture sessions so a
// stop/start cycle does not reallocate full-screen buffers.
var bufferPool sync.Pool // stores *image.RGBA

// acquireBuffer returns an RGBA buffer of width x height with the given stride.
func acquireBuffer(width, height, stride int) *image.RGBA {
	needed := stride * height
	var img *image.RGBA
	if v := bufferPool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		return &image.RGBA{Pix: make([]byte, needed), Stride: stride, Rect: image.Rect(0, 0, width, height)}
	}
	img.Pix = img.Pix[:needed]
	img.Stride = stride
	img.Rect = image.Rect(0, 0, width, height)
	return img
}

// recycleBuffer returns a buffer to the pool. The caller must not use it afterwards.
func recycleBuffer(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	bufferPool.Put(img)
}
