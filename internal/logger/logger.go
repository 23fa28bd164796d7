// Package logger reports query execution events. The execution layer logs
// every statement it runs, with parameters passed through a Sanitizer so
// queries against sensitive columns never leak values into logs.
package logger

import (
	"log/slog"
	"time"
)

// Logger is the structured logging interface the execution layer reports
// to. Arguments are alternating key-value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// SlogAdapter routes Logger calls to a *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps an slog logger. logger must not be nil.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// QueryEvent describes one executed statement.
type QueryEvent struct {
	SQL     string
	Params  []interface{}
	Driver  string
	Elapsed time.Duration
	// Rows is the affected-row count, or -1 when the statement returns a
	// row set instead.
	Rows int64
	Err  error
}

// LogQuery writes the event to l: Info for successes, Error for failures.
// Parameters go through the sanitizer before they reach the log.
func LogQuery(l Logger, s *Sanitizer, e QueryEvent) {
	if l == nil {
		return
	}
	fields := []any{
		"sql", e.SQL,
		"params", s.FormatParams(s.MaskParams(e.SQL, e.Params)),
		"duration_ms", e.Elapsed.Milliseconds(),
		"driver", e.Driver,
	}
	if e.Err != nil {
		l.Error("query failed", append(fields, "error", e.Err)...)
		return
	}
	if e.Rows >= 0 {
		fields = append(fields, "rows_affected", e.Rows)
	}
	l.Info("query executed", fields...)
}
