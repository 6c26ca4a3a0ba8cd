// Package logging provides the package-level structured logger used
// throughout the engine. Callers embedding the engine in a service supply
// their own zerolog.Logger via SetGlobalLogger; by default logging is a
// no-op so a minimal caller never pays for it.
package logging

import (
	"context"

	"github.com/rs/zerolog"
)

var Logger zerolog.Logger

func init() {
	SetGlobalLogger(zerolog.Nop())
}

// SetGlobalLogger installs logger as the package-level logger used by every
// component that does not have a request-scoped logger attached via context.
func SetGlobalLogger(logger zerolog.Logger) {
	Logger = logger
	zerolog.DefaultContextLogger = &Logger
}

func With() zerolog.Context { return Logger.With() }

func Err(err error) *zerolog.Event { return Logger.Err(err) }

func Trace() *zerolog.Event { return Logger.Trace() }

func Debug() *zerolog.Event { return Logger.Debug() }

func Info() *zerolog.Event { return Logger.Info() }

func Warn() *zerolog.Event { return Logger.Warn() }

func Error() *zerolog.Event { return Logger.Error() }

func WithLevel(level zerolog.Level) *zerolog.Event { return Logger.WithLevel(level) }

// Ctx returns the logger attached to ctx, falling back to the global logger
// if none was attached.
func Ctx(ctx context.Context) *zerolog.Logger { return zerolog.Ctx(ctx) }
