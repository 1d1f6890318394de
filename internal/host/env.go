package host

import (
	"context"
	"sync/atomic"
)

// Env is the per-worker compilation environment.
type Env struct {
	id        int
	switches  Switches
	data      atomic.Pointer[compilerData]
}

// compileIDs numbers compilations across every environment of the process.
var compileIDs atomic.Int64

type compilerData struct {
	value any
}

// NewEnv creates the environment of compiler worker id.
func NewEnv(id int, switches Switches) *Env {
	return &Env{id: id, switches: switches}
}

// ID returns the worker id.
func (e *Env) ID() int { return e.id }

// Switches returns the timing switches in effect for this worker.
func (e *Env) Switches() Switches {
	if e == nil {
		return Switches{}
	}
	return e.switches
}

// NextCompileID hands out a process-wide, monotonically increasing id. Ids
// are never reused, whichever worker asks.
func (e *Env) NextCompileID() int64 {
	return compileIDs.Add(1)
}

// CompilerData returns the value attached by the active compilation, or nil.
func (e *Env) CompilerData() any {
	if e == nil {
		return nil
	}
	d := e.data.Load()
	if d == nil {
		return nil
	}
	return d.value
}

// ClaimCompilerData attaches v if the slot is empty and reports success.
func (e *Env) ClaimCompilerData(v any) bool {
	if e == nil || v == nil {
		return false
	}
	return e.data.CompareAndSwap(nil, &compilerData{value: v})
}

// ReleaseCompilerData clears the slot if it still holds v.
func (e *Env) ReleaseCompilerData(v any) bool {
	if e == nil {
		return false
	}
	d := e.data.Load()
	if d == nil || d.value != v {
		return false
	}
	return e.data.CompareAndSwap(d, nil)
}

type envKey struct{}

// WithEnv attaches env to ctx.
func WithEnv(ctx context.Context, env *Env) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, envKey{}, env)
}

// EnvFrom extracts the environment from ctx.
func EnvFrom(ctx context.Context) (*Env, bool) {
	if ctx == nil {
		return nil, false
	}
	env, ok := ctx.Value(envKey{}).(*Env)
	return env, ok && env != nil
}
