// Package observability provides structured logging and Prometheus
// metrics for the call orchestration engine.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Logger provides structured logging with call correlation and
// redaction of API credentials.
//
// The logger is built on Go's slog package:
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - JSON output for production, text for development
//   - Automatic call ID correlation from context
//   - Redaction of API keys appearing in attribute values
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text"
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer
}

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// CallIDKey is the context key for call IDs.
	CallIDKey ContextKey = "call_id"

	// RequestIDKey is the context key for HTTP request IDs.
	RequestIDKey ContextKey = "request_id"
)

// secretPatterns matches credentials that must never reach log output.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)(auth[_-]?token|api[_-]?key)[\s:=]+["']?[a-zA-Z0-9_-]{16,}["']?`),
}

// NewLogger creates a structured logger with the given configuration.
// Empty fields fall back to level "info" and JSON output on stdout.
func NewLogger(cfg LogConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return &Logger{
		logger:  slog.New(handler),
		redacts: secretPatterns,
	}
}

// NewNopLogger returns a logger that discards all output. Intended for tests.
func NewNopLogger() *Logger {
	return NewLogger(LogConfig{Output: io.Discard})
}

// WithCallID returns a context carrying the call ID for log correlation.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, CallIDKey, callID)
}

// Debug logs at debug level with context correlation.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs at info level with context correlation.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level with context correlation.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level with context correlation.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	args = l.redactArgs(args)

	if callID, ok := ctx.Value(CallIDKey).(string); ok && callID != "" {
		args = append(args, string(CallIDKey), callID)
	}
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok && reqID != "" {
		args = append(args, string(RequestIDKey), reqID)
	}

	l.logger.Log(ctx, level, msg, args...)
}

func (l *Logger) redactArgs(args []any) []any {
	for i, arg := range args {
		s, ok := arg.(string)
		if !ok {
			continue
		}
		for _, re := range l.redacts {
			if re.MatchString(s) {
				s = re.ReplaceAllString(s, "[REDACTED]")
			}
		}
		args[i] = s
	}
	return args
}
