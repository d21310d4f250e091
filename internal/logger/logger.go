// Package logger is the process-wide structured log used by every other
// package. Call Initialize once at startup; until then all output is dropped.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelAlways sits above slog.LevelError so no configured level filters it.
// Quest completions and other audit records use it.
const LevelAlways = slog.Level(12)

var (
	mu      sync.RWMutex
	logger  *slog.Logger
	logFile io.Closer

	// console is where console output goes; tests swap it out
	console io.Writer = os.Stdout
)

// Initialize installs a logger built from config. Calling it again replaces
// the active logger and closes any log file the previous one held.
func Initialize(config Config) error {
	level := parseLogLevel(config.Level)

	var handlers []slog.Handler
	if config.ConsoleEnabled {
		handlers = append(handlers, newHandler(console, config.ConsoleFormat, level))
	}

	var file *lumberjack.Logger
	if config.FileEnabled {
		if config.FilePath == "" {
			return fmt.Errorf("failed to initialize logger: file logging enabled without a file path")
		}
		file = &lumberjack.Logger{
			Filename:   config.FilePath,
			MaxSize:    config.FileMaxSizeMB,
			MaxBackups: config.FileMaxBackups,
			MaxAge:     config.FileMaxAgeDays,
			Compress:   config.FileCompress,
		}
		handlers = append(handlers, newHandler(file, config.FileFormat, level))
	}

	// Nothing enabled still gets a console so startup errors are visible
	if len(handlers) == 0 {
		handlers = append(handlers, newHandler(console, "text", level))
	}

	var root slog.Handler = handlers[0]
	if len(handlers) > 1 {
		root = fanout(handlers)
	}

	mu.Lock()
	previous := logFile
	logger = slog.New(root)
	logFile = nil
	if file != nil {
		logFile = file
	}
	mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			return fmt.Errorf("failed to close previous log file: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the log file, if any. Console logging keeps working.
func Close() error {
	mu.Lock()
	file := logFile
	logFile = nil
	mu.Unlock()

	if file == nil {
		return nil
	}
	return file.Close()
}

// newHandler builds a text or JSON handler that prints LevelAlways as "ALWAYS"
func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: renameAlways}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func renameAlways(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAlways {
		a.Value = slog.StringValue("ALWAYS")
	}
	return a
}

// parseLogLevel maps a config level name to slog. Unknown names mean INFO.
func parseLogLevel(name string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func emit(level slog.Level, msg string, args []any) {
	if l := current(); l != nil {
		l.Log(context.Background(), level, msg, args...)
	}
}

// Debug logs at debug level
func Debug(msg string, args ...any) { emit(slog.LevelDebug, msg, args) }

// Info logs at info level
func Info(msg string, args ...any) { emit(slog.LevelInfo, msg, args) }

// Warning logs at warn level
func Warning(msg string, args ...any) { emit(slog.LevelWarn, msg, args) }

// Error logs at error level
func Error(msg string, args ...any) { emit(slog.LevelError, msg, args) }

// Always logs regardless of the configured level
func Always(msg string, args ...any) { emit(LevelAlways, msg, args) }

func Debugf(format string, args ...any)   { Debug(fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)    { Info(fmt.Sprintf(format, args...)) }
func Warningf(format string, args ...any) { Warning(fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any)   { Error(fmt.Sprintf(format, args...)) }
func Alwaysf(format string, args ...any)  { Always(fmt.Sprintf(format, args...)) }

// With returns a logger that adds args to every record, for per-component
// or per-session context. Before Initialize it discards everything.
func With(args ...any) *slog.Logger {
	l := current()
	if l == nil {
		return slog.New(discardHandler{})
	}
	return l.With(args...)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }

// fanout sends each record to every handler that accepts its level
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to every handler and reports the first failure
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(wrap func(slog.Handler) slog.Handler) fanout {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = wrap(h)
	}
	return out
}
