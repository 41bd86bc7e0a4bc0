package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with contextual fields
type Logger struct {
	*slog.Logger
}

// New creates a new logger
func New(level, format string) *Logger {
	var handler slog.Handler

	logLevel := parseLevel(level)

	switch format {
	case "json":
		opts := &slog.HandlerOptions{
			Level: logLevel,
		}
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		// Use tint for colored console output during development
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
			AddSource:  false,
		})
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with request_id from context
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if requestID := ctx.Value("request_id"); requestID != nil {
		return &Logger{
			Logger: l.With("request_id", requestID),
		}
	}
	return l
}

// WithFields returns a logger with additional fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{
		Logger: l.With(args...),
	}
}

// WithGameID adds game_id to logger context
func (l *Logger) WithGameID(gameID string) *Logger {
	return &Logger{
		Logger: l.With("game_id", gameID),
	}
}

// WithTagID adds tag_id to logger context
func (l *Logger) WithTagID(tagID string) *Logger {
	return &Logger{
		Logger: l.With("tag_id", tagID),
	}
}

// Error logs an error with stack trace
func (l *Logger) Error(msg string, args ...any) {
	stack := string(debug.Stack())
	args = append(args, "stack", stack)
	l.Logger.Error(msg, args...)
}

// ErrorContext logs an error with context and stack trace
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	stack := string(debug.Stack())
	args = append(args, "stack", stack)
	l.Logger.ErrorContext(ctx, msg, args...)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
