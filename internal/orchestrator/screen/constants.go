package screen

import "time"

const (
	// DefaultInterval is the acquisition cadence.
	DefaultInterval = 1000 * time.Millisecond

	// MaxHashDistance is the largest pHash Hamming distance at which two
	// crops count as unchanged.
	MaxHashDistance = 2
)
