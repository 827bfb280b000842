package orchestrator

import "time"

// Orchestrator configuration constants
const (
	// Result store size when no history limit is configured
	ResultMaxEntries = 50

	// Seconds of recognized text returned by RecentText in status
	StatusTextSeconds = 60

	// Bound on waiting for an in-flight recognition after stop
	RecognitionDrainTimeout = 5 * time.Second
)
