package compile

import (
	"context"

	"jitc/internal/host"
)

// Current returns the session attached to the environment in ctx.
func Current(ctx context.Context) (*Session, error) {
	env, ok := host.EnvFrom(ctx)
	if !ok {
		return nil, ErrNoSession
	}
	s, ok := env.CompilerData().(*Session)
	if !ok || s == nil || s.closed.Load() {
		return nil, ErrNoSession
	}
	return s, nil
}

// MustCurrent is Current for code that can only run inside a compilation.
// It panics with ErrNoSession otherwise.
func MustCurrent(ctx context.Context) *Session {
	s, err := Current(ctx)
	if err != nil {
		panic(err)
	}
	return s
}

// ReportError reports msg on the current session. Outside a session it
// panics with ErrNoSession.
func ReportError(ctx context.Context, msg string) {
	MustCurrent(ctx).ReportError(msg)
}

// ReportErrorf formats and reports an error on the current session.
func ReportErrorf(ctx context.Context, format string, args ...any) {
	MustCurrent(ctx).ReportErrorf(format, args...)
}

// ErrorOccurred reports whether the current session has failed. Outside a
// session it panics with ErrNoSession.
func ErrorOccurred(ctx context.Context) bool {
	return MustCurrent(ctx).ErrorOccurred()
}
