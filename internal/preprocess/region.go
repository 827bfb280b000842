// Package preprocess crops a fixed region out of a captured frame and
// binarizes it for text recognition.
package preprocess

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// Region is a fixed rectangle in source-frame pixel coordinates.
// Right and Bottom are exclusive.
type Region struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Right  int `json:"right" yaml:"right"`
	Bottom int `json:"bottom" yaml:"bottom"`
}

// Width returns the width of the region.
func (r Region) Width() int { return r.Right - r.Left }

// Height returns the height of the region.
func (r Region) Height() int { return r.Bottom - r.Top }

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle { return image.Rect(r.Left, r.Top, r.Right, r.Bottom) }

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.Left, r.Top, r.Right, r.Bottom)
}

// Validate checks the region's shape without reference to a frame.
func (r Region) Validate() error {
	if r.Left < 0 || r.Top < 0 {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "region %s has negative origin", r)
	}
	if r.Left >= r.Right || r.Top >= r.Bottom {
		return apperrors.Newf(apperrors.CodeConfigInvalid, "region %s is empty", r)
	}
	return nil
}

// Fits reports whether the region lies inside a width x height frame.
func (r Region) Fits(width, height int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Right > width || r.Bottom > height {
		return apperrors.Newf(apperrors.CodeRegionOutOfBounds, "region %s exceeds %dx%d frame", r, width, height).
			WithMetadata("frame", fmt.Sprintf("%dx%d", width, height))
	}
	return nil
}

// ParseRegion parses "left,top,right,bottom".
func ParseRegion(s string) (Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Region{}, apperrors.Newf(apperrors.CodeConfigInvalid, "region %q: want left,top,right,bottom", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Region{}, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "region %q", s)
		}
		v[i] = n
	}
	r := Region{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
	return r, r.Validate()
}
