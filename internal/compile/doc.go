// Package compile runs one compilation of a method or runtime stub through an
// external backend.
//
// A Session owns everything the compilation allocates: an arena region, the
// IR module, the result artifact and a first-failure-wins error slot. The
// pipeline is strictly sequential:
//
//	initialize -> build IR -> optimize -> codegen -> finalize
//
// Phases never return failures to the driver. They call ReportError, and the
// driver checks ErrorOccurred at every phase boundary; once an error is
// recorded the remaining phases are skipped, except for the finalize
// teardown, which releases resources and never installs a failed result.
//
// The session is attached to the worker's host.Env for its whole lifetime,
// so code far below the driver reaches it from a context:
//
//	compile.ReportError(ctx, "unsupported bytecode")
package compile
