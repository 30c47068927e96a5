package sparsedex

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with sparsedex-specific context. This provides
// structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler. If handler is
// nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler)}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable
	})
	return &Logger{Logger: slog.New(handler)}
}

// WithSegment adds a segment id field to the logger.
func (l *Logger) WithSegment(id uint64) *Logger {
	return &Logger{Logger: l.Logger.With("segment_id", id)}
}

// WithGeneration adds a manifest generation field to the logger.
func (l *Logger) WithGeneration(gen uint64) *Logger {
	return &Logger{Logger: l.Logger.With("generation", gen)}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, rowID uint32, nnz int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed", "row_id", rowID, "nnz", nnz, "error", err)
	} else {
		l.DebugContext(ctx, "insert completed", "row_id", rowID, "nnz", nnz)
	}
}

// LogCommit logs a commit (flush-to-segment) operation.
func (l *Logger) LogCommit(ctx context.Context, segmentID uint64, rowCount int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "commit failed", "segment_id", segmentID, "error", err)
	} else {
		l.InfoContext(ctx, "commit completed", "segment_id", segmentID, "row_count", rowCount)
	}
}

// LogSearch logs a search operation.
func (l *Logger) LogSearch(ctx context.Context, k, resultsFound int, brute bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "brute", brute, "error", err)
	} else {
		l.DebugContext(ctx, "search completed", "k", k, "brute", brute, "results", resultsFound)
	}
}

// LogSeal logs a segment seal (write) operation.
func (l *Logger) LogSeal(ctx context.Context, segmentID uint64, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "segment seal failed", "segment_id", segmentID, "error", err)
	} else {
		l.InfoContext(ctx, "segment sealed", "segment_id", segmentID, "bytes", bytes)
	}
}

// LogMerge logs a background merge operation.
func (l *Logger) LogMerge(ctx context.Context, inputs []uint64, outputSegmentID uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "merge failed", "inputs", inputs, "error", err)
	} else {
		l.InfoContext(ctx, "merge completed", "inputs", inputs, "output_segment_id", outputSegmentID)
	}
}

// LogManifest logs a manifest publish operation.
func (l *Logger) LogManifest(ctx context.Context, generation uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "manifest publish failed", "generation", generation, "error", err)
	} else {
		l.DebugContext(ctx, "manifest published", "generation", generation)
	}
}
