// Package notify carries player-facing notifications out of the engine.
// Delivery is one-way: the engine never reads notification state back.
package notify

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/questengine/internal/logger"
)

// Severity classifies a notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Options are optional presentation hints
type Options struct {
	Duration    time.Duration `json:"duration,omitempty"`
	Category    string        `json:"category,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Notification is one delivered message
type Notification struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Options  Options  `json:"options"`
}

// Sink accepts notifications
type Sink interface {
	Notify(message string, severity Severity, opts Options)
}

// Func adapts a function to Sink
type Func func(message string, severity Severity, opts Options)

// Notify calls f
func (f Func) Notify(message string, severity Severity, opts Options) {
	f(message, severity, opts)
}

// LogSink writes notifications to the application log
type LogSink struct{}

// Notify logs the notification at a level matching its severity
func (LogSink) Notify(message string, severity Severity, opts Options) {
	args := []any{"severity", severity, "category", opts.Category}
	if opts.Description != "" {
		args = append(args, "description", opts.Description)
	}
	switch severity {
	case SeverityWarning:
		logger.Warning(message, args...)
	case SeverityError:
		logger.Error(message, args...)
	default:
		logger.Info(message, args...)
	}
}

// Durations fills in a default display duration per severity
type Durations map[Severity]time.Duration

// DefaultDurations are used when no configuration overrides them
func DefaultDurations() Durations {
	return Durations{
		SeverityInfo:    3 * time.Second,
		SeveritySuccess: 4 * time.Second,
		SeverityWarning: 5 * time.Second,
		SeverityError:   8 * time.Second,
	}
}

// WithDurations wraps a sink so notifications without a duration get the
// default for their severity
func WithDurations(next Sink, durations Durations) Sink {
	return Func(func(message string, severity Severity, opts Options) {
		if opts.Duration == 0 {
			opts.Duration = durations[severity]
		}
		next.Notify(message, severity, opts)
	})
}

// Fanout delivers every notification to all sinks in order
func Fanout(sinks ...Sink) Sink {
	return Func(func(message string, severity Severity, opts Options) {
		for _, s := range sinks {
			s.Notify(message, severity, opts)
		}
	})
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records the notification
func (r *Recorder) Notify(message string, severity Severity, opts Options) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Message: message, Severity: severity, Options: opts})
}

// All returns a copy of everything recorded
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification{}, r.items...)
}

// Drain returns everything recorded and clears the recorder
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.items
	r.items = nil
	return items
}

// Last returns the most recent notification
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Count returns how many notifications of a severity were recorded
func (r *Recorder) Count(severity Severity) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Severity == severity {
			n++
		}
	}
	return n
}
