// Package screen owns the mirrored-display resource: a pixel-buffer sink and
// the platform display that writes into it.
package screen

import (
	apperrors "github.com/GriffinCanCode/screen-ocr/internal/errors"
)

// ResultOK is the result code a permission flow reports on success.
const ResultOK = -1

// Grant is the opaque credential a permission flow hands over for creating a
// mirrored display. It is single-use per session start.
type Grant struct {
	ResultCode int
	Payload    []byte
}

// Validate checks only that the permission flow reported success.
func (g Grant) Validate() error {
	if g.ResultCode != ResultOK {
		return apperrors.Newf(apperrors.CodeInvalidGrant, "permission flow returned result code %d", g.ResultCode)
	}
	return nil
}
