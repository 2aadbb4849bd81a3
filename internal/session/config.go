package session

import (
	"fmt"
	"time"
)

// Flush window policies.
const (
	// FlushWindowFull submits the entire buffered audio on every flush.
	// Required for compressed container formats that are only decodable
	// from the stream head; the aggregator absorbs the resulting
	// re-transcribed duplicates.
	FlushWindowFull = "full"
	// FlushWindowTail submits only the audio appended since the previous
	// flush. Suitable for raw PCM-style engines.
	FlushWindowTail = "tail"
)

// Config carries the tunables for one session state machine.
type Config struct {
	// DefaultBufferSeconds is used when a start frame omits buffer_seconds.
	DefaultBufferSeconds float64
	// MinBufferSeconds and MaxBufferSeconds bound the client-requested
	// flush interval; out-of-range positive values are clamped.
	MinBufferSeconds float64
	MaxBufferSeconds float64
	// MaxBufferBytes caps the session audio buffer. Zero uses the
	// audio package default.
	MaxBufferBytes int
	// FlushWindow selects FlushWindowFull or FlushWindowTail.
	FlushWindow string
	// FlushTimeout bounds each mid-session engine call.
	FlushTimeout time.Duration
	// StopFlushTimeout bounds the final pass at stop time. Kept shorter
	// than FlushTimeout so shutdown latency stays bounded.
	StopFlushTimeout time.Duration
	// StopGrace bounds how long stop waits for an in-flight flush to
	// drain before abandoning it.
	StopGrace time.Duration
	// EngineFailureThreshold is the number of consecutive engine
	// failures after which the session goes to Errored.
	EngineFailureThreshold int
	// DedupEpsilon is the aggregator near-duplicate window in seconds.
	DedupEpsilon float64
	// MergeOverwrite selects whether a near-duplicate refinement
	// replaces the earlier text instead of being dropped.
	MergeOverwrite bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultBufferSeconds:   4.0,
		MinBufferSeconds:       1.0,
		MaxBufferSeconds:       30.0,
		FlushWindow:            FlushWindowFull,
		FlushTimeout:           30 * time.Second,
		StopFlushTimeout:       10 * time.Second,
		StopGrace:              5 * time.Second,
		EngineFailureThreshold: 5,
		DedupEpsilon:           0.25,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.DefaultBufferSeconds <= 0 {
		return fmt.Errorf("default_buffer_seconds must be positive, got %v", c.DefaultBufferSeconds)
	}
	if c.MinBufferSeconds <= 0 {
		return fmt.Errorf("min_buffer_seconds must be positive, got %v", c.MinBufferSeconds)
	}
	if c.MaxBufferSeconds < c.MinBufferSeconds {
		return fmt.Errorf("max_buffer_seconds %v is below min_buffer_seconds %v", c.MaxBufferSeconds, c.MinBufferSeconds)
	}
	if c.FlushWindow != FlushWindowFull && c.FlushWindow != FlushWindowTail {
		return fmt.Errorf("flush_window must be %q or %q, got %q", FlushWindowFull, FlushWindowTail, c.FlushWindow)
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("flush_timeout must be positive, got %v", c.FlushTimeout)
	}
	if c.StopFlushTimeout <= 0 {
		return fmt.Errorf("stop_flush_timeout must be positive, got %v", c.StopFlushTimeout)
	}
	if c.StopGrace < 0 {
		return fmt.Errorf("stop_grace must not be negative, got %v", c.StopGrace)
	}
	if c.EngineFailureThreshold <= 0 {
		return fmt.Errorf("engine_failure_threshold must be positive, got %d", c.EngineFailureThreshold)
	}
	if c.DedupEpsilon <= 0 {
		return fmt.Errorf("dedup_epsilon must be positive, got %v", c.DedupEpsilon)
	}
	return nil
}

// clampBufferSeconds normalizes the client-requested flush interval.
// Zero falls back to the default; positive values are clamped into the
// configured range. Negative or NaN values are rejected by the caller
// before this point.
func (c Config) clampBufferSeconds(requested float64) float64 {
	if requested == 0 {
		requested = c.DefaultBufferSeconds
	}
	if requested < c.MinBufferSeconds {
		return c.MinBufferSeconds
	}
	if requested > c.MaxBufferSeconds {
		return c.MaxBufferSeconds
	}
	return requested
}
