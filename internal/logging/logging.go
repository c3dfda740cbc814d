// Package logging provides structured logging using Go's slog package.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

const (
	// SessionIDKey is the context key for matchup session IDs.
	SessionIDKey ContextKey = "session_id"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger *slog.Logger

	mu     sync.Mutex
	output io.Writer = os.Stderr
	closer io.Closer
)

func init() {
	// Initialize with a default logger (JSON format, Info level)
	InitLogger(LevelInfo, FormatJSON)
}

// Level represents a log level.
type Level int

const (
	// LevelDebug is for debug messages.
	LevelDebug Level = iota
	// LevelInfo is for informational messages.
	LevelInfo
	// LevelWarn is for warning messages.
	LevelWarn
	// LevelError is for error messages.
	LevelError
)

// Format represents a log output format.
type Format int

const (
	// FormatJSON outputs logs in JSON format.
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format.
	FormatText
)

// ParseLevel maps "debug", "info", "warn" or "error" to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ParseFormat maps "json" or "text" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	}
	return FormatJSON, fmt.Errorf("unknown log format %q", s)
}

// InitLogger initializes the global logger with the specified level and format.
func InitLogger(level Level, format Format) {
	mu.Lock()
	defer mu.Unlock()
	initLocked(level, format)
}

func initLocked(level Level, format Format) {
	var slogLevel slog.Level
	switch level {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelInfo:
		slogLevel = slog.LevelInfo
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: slogLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize timestamp format
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(time.RFC3339))
			}
			return a
		},
	}

	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// SetOutput redirects log output to w and reinitializes the logger. A nil
// writer restores stderr.
func SetOutput(w io.Writer, level Level, format Format) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	if w == nil {
		w = os.Stderr
	}
	output = w
	initLocked(level, format)
}

// FileOptions configures the rotating log file.
type FileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// InitFileLogger writes logs to a size-rotated file instead of stderr.
func InitFileLogger(opts FileOptions, level Level, format Format) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = 10
	}
	lj := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	output = lj
	closer = lj
	initLocked(level, format)
}

// Close releases a log file opened by InitFileLogger and falls back to
// stderr.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closeLocked()
	output = os.Stderr
	return err
}

func closeLocked() error {
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

// WithSessionID adds a matchup session ID to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}

// LoggerFromContext returns a logger with context values attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	logger := defaultLogger
	if sessionID := GetSessionID(ctx); sessionID != "" {
		logger = logger.With("session_id", sessionID)
	}
	return logger
}

// Helper functions for common logging patterns

// Debug logs a debug message with optional key-value pairs.
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Info logs an info message with optional key-value pairs.
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Warn logs a warning message with optional key-value pairs.
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Error logs an error message with optional key-value pairs.
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Debug(msg, args...)
}

// WarnContext logs a warning message with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	LoggerFromContext(ctx).Warn(msg, args...)
}

// ParseCompleted logs the outcome of parsing one book.
func ParseCompleted(book string, inBlocks, outBlocks, unclear int, args ...any) {
	allArgs := []any{
		"book", book,
		"input_blocks", inBlocks,
		"output_blocks", outBlocks,
		"unclear_blocks", unclear,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("parse_completed", allArgs...)
}

// QuoteRecovered logs a quote the parser had to force-close.
func QuoteRecovered(book string, chapter, verse int, reason string, args ...any) {
	allArgs := []any{
		"book", book,
		"chapter", chapter,
		"verse", verse,
		"reason", reason,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Debug("quote_recovered", allArgs...)
}

// MatchupApplied logs a committed matchup session.
func MatchupApplied(ctx context.Context, book string, replaced, inserted int, args ...any) {
	allArgs := []any{
		"book", book,
		"replaced_blocks", replaced,
		"inserted_blocks", inserted,
	}
	allArgs = append(allArgs, args...)
	LoggerFromContext(ctx).Info("matchup_applied", allArgs...)
}

// ImportCompleted logs a finished document import.
func ImportCompleted(format, book string, blocks int, args ...any) {
	allArgs := []any{
		"format", format,
		"book", book,
		"blocks", blocks,
	}
	allArgs = append(allArgs, args...)
	defaultLogger.Info("import_completed", allArgs...)
}
