// Package host models the boundary between the compiler core and the
// runtime that hosts it: method descriptors, the per-worker compilation
// environment and the global timing switches.
//
// The environment is the only way code deep inside a compilation finds the
// active session. It travels through context.Context:
//
//	env := host.NewEnv(workerID, switches)
//	ctx = host.WithEnv(ctx, env)
//
// Each compiler worker owns exactly one Env. An Env carries at most one
// compiler-data value at a time; claiming the slot while it is occupied fails.
package host
