// Package logging holds the logger shared by the renderer packages.
//
// By default nothing is logged. Front-ends call SetLogger once at start up;
// components which take a *slog.Logger in their configuration fall back to
// Logger when given nil.
//
// Levels:
//   - [slog.LevelDebug]: per-resource diagnostics (uploads, retired transfers)
//   - [slog.LevelInfo]: lifecycle events (device selected, swapchain built)
//   - [slog.LevelWarn]: recoverable anomalies (suboptimal swapchain)
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Nop returns a logger that discards everything.
func Nop() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(Nop())
}

// SetLogger replaces the shared logger. Nil restores the silent default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = Nop()
	}
	loggerPtr.Store(l)
}

// Logger returns the shared logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// Or returns l, or the shared logger when l is nil.
func Or(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return Logger()
}
