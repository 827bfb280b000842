package screen

import (
	"errors"
	"image"
	"image/color"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

type fakeDisplay struct {
	released atomic.Int32
	err      error
}

func (d *fakeDisplay) Release() error {
	d.released.Add(1)
	return d.err
}

type fakePlatform struct {
	display   *fakeDisplay
	mirrorErr error
	sink      *BufferSink
	density   int
}

func (p *fakePlatform) Name() string                   { return "fake" }
func (p *fakePlatform) DisplaySize() (int, int, error) { return 64, 48, nil }
func (p *fakePlatform) Mirror(_ Grant, sink *BufferSink, density int) (Display, error) {
	if p.mirrorErr != nil {
		return nil, p.mirrorErr
	}
	p.sink = sink
	p.density = density
	return p.display, nil
}

func okGrant() Grant { return Grant{ResultCode: ResultOK, Payload: []byte("token")} }

func TestGrantValidate(t *testing.T) {
	if err := okGrant().Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	err := Grant{ResultCode: 0}.Validate()
	if !apperrors.IsCode(err, apperrors.CodeInvalidGrant) {
		t.Errorf("Validate() = %v, want INVALID_GRANT", err)
	}
}

func TestOpenInvalidGrant(t *testing.T) {
	p := &fakePlatform{display: &fakeDisplay{}}
	_, err := Open(p, Grant{ResultCode: 1}, 64, 48, 160)
	if !apperrors.IsCode(err, apperrors.CodeInvalidGrant) {
		t.Fatalf("Open() = %v, want INVALID_GRANT", err)
	}
	if p.sink != nil {
		t.Error("Mirror should not be called with an invalid grant")
	}
}

func TestOpenBadSize(t *testing.T) {
	p := &fakePlatform{display: &fakeDisplay{}}
	_, err := Open(p, okGrant(), 0, 48, 160)
	if !apperrors.IsCode(err, apperrors.CodeResourceAllocationFailed) {
		t.Fatalf("Open() = %v, want RESOURCE_ALLOCATION_FAILED", err)
	}
}

func TestOpenMirrorFailureClosesSink(t *testing.T) {
	p := &fakePlatform{mirrorErr: errors.New("denied")}
	_, err := Open(p, okGrant(), 64, 48, 160)
	if !apperrors.IsCode(err, apperrors.CodeResourceAllocationFailed) {
		t.Fatalf("Open() = %v, want RESOURCE_ALLOCATION_FAILED", err)
	}
}

func TestAdapterAcquireAndRelease(t *testing.T) {
	disp := &fakeDisplay{}
	p := &fakePlatform{display: disp}
	a, err := Open(p, okGrant(), 64, 48, 160)
	if err != nil {
		t.Fatal(err)
	}
	if p.density != 160 {
		t.Errorf("density = %d, want 160", p.density)
	}
	if w, h := a.Size(); w != 64 || h != 48 {
		t.Errorf("Size() = %dx%d", w, h)
	}

	if _, ok, err := a.AcquireFrame(); ok || err != nil {
		t.Fatalf("AcquireFrame() before any write: ok=%v err=%v", ok, err)
	}
	_ = p.sink.Write(fillColor(color.RGBA{200, 200, 50, 255}))
	f, ok, err := a.AcquireFrame()
	if err != nil || !ok {
		t.Fatalf("AcquireFrame() ok=%v err=%v", ok, err)
	}
	f.Release()

	if err := a.Release(); err != nil {
		t.Fatalf("Release() = %v", err)
	}
	if err := a.Release(); err != nil {
		t.Fatalf("second Release() = %v", err)
	}
	if disp.released.Load() != 1 {
		t.Errorf("display released %d times, want 1", disp.released.Load())
	}
	if !p.sink.Closed() {
		t.Error("sink should be closed")
	}
	if _, _, err := a.AcquireFrame(); !errors.Is(err, ErrReleased) {
		t.Errorf("AcquireFrame after release = %v, want ErrReleased", err)
	}
}

func TestAdapterReleaseFailure(t *testing.T) {
	p := &fakePlatform{display: &fakeDisplay{err: errors.New("busy")}}
	a, err := Open(p, okGrant(), 8, 8, 160)
	if err != nil {
		t.Fatal(err)
	}
	err = a.Release()
	if !apperrors.IsCode(err, apperrors.CodeResourceReleaseFailed) {
		t.Errorf("Release() = %v, want RESOURCE_RELEASE_FAILED", err)
	}
	if !p.sink.Closed() {
		t.Error("sink should be closed even when the display fails to release")
	}
}

func TestStillPlatformMirrors(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 20, 10))
	yellow := color.RGBA{255, 255, 0, 255}
	src.SetRGBA(5, 5, yellow)

	p := NewStillPlatform(src, 10*time.Millisecond)
	w, h, _ := p.DisplaySize()
	a, err := Open(p, okGrant(), w, h, 160)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Release()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok, _ := a.AcquireFrame(); ok {
			got := f.Image.RGBAAt(5, 5)
			f.Release()
			if got != yellow {
				t.Fatalf("pixel = %v, want %v", got, yellow)
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no frame mirrored")
}

func TestBlitScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetRGBA(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	dst := image.NewRGBA(image.Rect(0, 0, 2, 2))
	blit(dst, src)
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("scaled pixel = %v", got)
	}
}

func TestBlitNonRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	src.Set(2, 2, color.NRGBA{0, 0, 255, 255})
	dst := image.NewRGBA(image.Rect(0, 0, 3, 3))
	blit(dst, src)
	if got := dst.RGBAAt(2, 2); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("pixel = %v", got)
	}
}

func TestBlitPaddedDestination(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	src.SetRGBA(1, 1, color.RGBA{7, 8, 9, 255})
	dst := &image.RGBA{Pix: make([]byte, (2*4+4)*2), Stride: 2*4 + 4, Rect: image.Rect(0, 0, 2, 2)}
	blit(dst, src)
	if got := dst.RGBAAt(1, 1); got != (color.RGBA{7, 8, 9, 255}) {
		t.Errorf("pixel = %v", got)
	}
}
