// Package antispam throttles how fast a single session may report game
// events.
package antispam

import (
	"sync"
	"time"
)

// Config holds event throttle configuration
type Config struct {
	Enabled    bool          // Whether throttling is enabled
	MaxEvents  int           // Max events allowed in the time window
	TimeWindow time.Duration // Sliding window length
}

// DefaultConfig returns sensible defaults for event throttling
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		MaxEvents:  30,
		TimeWindow: 10 * time.Second,
	}
}

// ConfigFromYAML creates a Config from YAML-loaded values
func ConfigFromYAML(enabled bool, maxEvents, timeWindowSeconds int) Config {
	cfg := DefaultConfig()
	cfg.Enabled = enabled
	if maxEvents > 0 {
		cfg.MaxEvents = maxEvents
	}
	if timeWindowSeconds > 0 {
		cfg.TimeWindow = time.Duration(timeWindowSeconds) * time.Second
	}
	return cfg
}

// Tracker tracks event activity for a single session
type Tracker struct {
	mu         sync.Mutex
	config     Config
	now        func() time.Time
	eventTimes []time.Time // timestamps of recent events, oldest first
}

// NewTracker creates a tracker. now may be nil to use the wall clock.
func NewTracker(config Config, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		config:     config,
		now:        now,
		eventTimes: make([]time.Time, 0, config.MaxEvents),
	}
}

// CheckResult contains the result of a throttle check
type CheckResult struct {
	Allowed     bool
	Reason      string
	WaitSeconds int // How long to wait before trying again (if not allowed)
}

// Check records an event if it fits in the window
func (t *Tracker) Check() CheckResult {
	if !t.config.Enabled || t.config.MaxEvents <= 0 {
		return CheckResult{Allowed: true}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.cleanup(now)

	if len(t.eventTimes) >= t.config.MaxEvents {
		waitUntil := t.eventTimes[0].Add(t.config.TimeWindow)
		remaining := waitUntil.Sub(now)
		return CheckResult{
			Allowed:     false,
			Reason:      "Too many events. Please slow down.",
			WaitSeconds: int(remaining.Seconds()) + 1,
		}
	}

	t.eventTimes = append(t.eventTimes, now)
	return CheckResult{Allowed: true}
}

// cleanup drops events that fell out of the window
func (t *Tracker) cleanup(now time.Time) {
	cutoff := now.Add(-t.config.TimeWindow)
	kept := t.eventTimes[:0]
	for _, at := range t.eventTimes {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.eventTimes = kept
}

// Reset clears all tracking data
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.eventTimes = t.eventTimes[:0]
}
