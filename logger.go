package streamdraw

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from the render thread.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(nopHandler{})
	loggerPtr.Store(l)
}

// slogger returns the current package logger.
// All logging in streamdraw goes through this function.
func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger configures the logger for streamdraw. By default the package
// produces no log output. Pass nil to restore the silent default.
//
// Log levels used by streamdraw:
//   - [slog.LevelDebug]: per-flush diagnostics (draw parameters, skipped draws)
//   - [slog.LevelInfo]: lifecycle events (buffers created, backend selected)
//   - [slog.LevelWarn]: non-fatal issues (device call failures, fence stalls)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}
