package resilience

import "time"

// Breaker presets.
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Recognition trips quickly: one tick per second means a dead engine
	// would otherwise burn a timeout on every tick.
	RecognitionThreshold         = 3
	RecognitionResetTimeout      = 10 * time.Second
	RecognitionHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string
	Threshold         int           // consecutive failures before opening
	ResetTimeout      time.Duration // wait before a half-open probe
	HalfOpenSuccesses int           // probes needed to close
	// IsFailure decides which errors count against the breaker. Nil counts every error.
	IsFailure func(error) bool
}

// DefaultConfig returns general-purpose settings.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// RecognitionConfig returns settings for guarding an OCR engine.
func RecognitionConfig() Config {
	return Config{
		Name:              "recognition",
		Threshold:         RecognitionThreshold,
		ResetTimeout:      RecognitionResetTimeout,
		HalfOpenSuccesses: RecognitionHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	if c.IsFailure == nil {
		c.IsFailure = func(err error) bool { return err != nil }
	}
	return c
}
