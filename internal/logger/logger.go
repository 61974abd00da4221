package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

var (
	defaultLogger atomic.Pointer[slog.Logger]
	once          sync.Once
)

// Init sets up the process-wide text logger on stdout. Only the first call
// has any effect; debug enables debug level and source locations.
func Init(debug bool) {
	InitWriter(os.Stdout, debug)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, debug bool) {
	once.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: debug,
		}

		l := slog.New(slog.NewTextHandler(w, opts))
		defaultLogger.Store(l)
		slog.SetDefault(l)
	})
}

func get() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	Init(os.Getenv("DEBUG") == "true")
	return defaultLogger.Load()
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}
