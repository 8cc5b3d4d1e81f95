// Package logger provides verbose logging for the kcache CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are written to stderr through a log/slog handler to help users follow
// the ingestion and retrieval pipelines.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Format selects the slog handler.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	mu      sync.RWMutex
	verbose bool
	format            = FormatText
	output  io.Writer = os.Stderr
	log               = newLogger(output, format)
)

// newLogger builds a debug-level logger without timestamps so output is
// stable for tests and readable next to command output.
func newLogger(w io.Writer, f Format) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = newLogger(output, format)
}

// SetFormat switches between text and JSON records.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	if f != FormatJSON {
		f = FormatText
	}
	format = f
	log = newLogger(output, format)
}

func emit(level slog.Level, msg string, attrs ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		log.Log(context.Background(), level, msg, attrs...)
	}
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	emit(slog.LevelDebug, fmt.Sprintf(format, args...))
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	emit(slog.LevelInfo, "section", "name", name)
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	emit(slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	if !IsVerbose() {
		return
	}
	emit(slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Event records a structured message with key/value attributes if verbose
// mode is enabled.
func Event(msg string, attrs ...any) {
	emit(slog.LevelInfo, msg, attrs...)
}
