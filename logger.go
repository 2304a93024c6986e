package rowtable

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with table-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithTable adds path and group fields to the logger.
func (l *Logger) WithTable(path, group string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path, "group", group),
	}
}

// LogCreate logs the creation of a table.
func (l *Logger) LogCreate(ctx context.Context, path, group string, rows, cols int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create failed",
			"path", path,
			"group", group,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "table created",
		"path", path,
		"group", group,
		"rows", rows,
		"cols", cols,
	)
}

// LogClose logs the finalization of a table.
func (l *Logger) LogClose(ctx context.Context, path, group string, written, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "close failed",
			"path", path,
			"group", group,
			"error", err,
		)
		return
	}
	if written < rows {
		l.InfoContext(ctx, "table finalized with unwritten rows",
			"path", path,
			"group", group,
			"written", written,
			"rows", rows,
		)
		return
	}
	l.InfoContext(ctx, "table finalized",
		"path", path,
		"group", group,
		"rows", rows,
	)
}

// LogAbort logs a writer released without finalization.
func (l *Logger) LogAbort(ctx context.Context, path, group string, err error) {
	l.WarnContext(ctx, "table aborted",
		"path", path,
		"group", group,
		"error", err,
	)
}

// LogOpen logs opening a table for reading.
func (l *Logger) LogOpen(ctx context.Context, path, group string, err error) {
	if err != nil {
		l.DebugContext(ctx, "open failed",
			"path", path,
			"group", group,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "table opened",
		"path", path,
		"group", group,
	)
}

// LogPublish logs the upload of a table file.
func (l *Logger) LogPublish(ctx context.Context, path, name string, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"path", path,
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "table file published",
		"path", path,
		"name", name,
		"bytes", size,
	)
}
