// Package trace records what the compiler is doing while it does it.
//
// Sessions, phases and backend calls emit begin/end/point events to a Tracer
// carried in the context. Tracers write immediately (StreamTracer), keep the
// newest events in memory for post-mortem dumps (RingTracer), or both
// (MultiTracer). When tracing is off the Nop tracer costs a single branch.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(ctx, trace.ScopePhase, "optimize")
//	defer span.End("")
//
// Levels select how deep events go:
//
//   - LevelOff: nothing
//   - LevelError: only explicit error points
//   - LevelSession: driver and session boundaries
//   - LevelPhase: plus pipeline phases
//   - LevelDebug: plus backend tool invocations
package trace
