//go:build windows

package screen

import (
	"errors"
	"image"
)

// Windows has no screenshot CLI; use the screenshot backend instead.
var errNoTool = errors.New("tool capture is not supported on windows, use CAPTURE_BACKEND=screenshot")

func toolGrab(string) (image.Image, error) {
	return nil, errNoTool
}
