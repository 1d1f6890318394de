package host

import (
	"io"
	"os"
)

// Switches are the global compile-time measurement flags.
type Switches struct {
	// MeasureCompileTime accumulates phase timers for the whole run (CITime).
	MeasureCompileTime bool
	// MeasureEach measures every compilation individually (CITimeEach).
	MeasureEach bool
	// Verbose prints a line per timed phase when MeasureEach is set (CITimeVerbose).
	Verbose bool
	// Output receives verbose lines. Nil means stderr.
	Output io.Writer
}

// Active reports whether phase timers credit the shared registry.
func (s Switches) Active() bool {
	return s.MeasureCompileTime || s.MeasureEach
}

// VerboseEach reports whether every timed phase prints a trace line.
func (s Switches) VerboseEach() bool {
	return s.MeasureEach && s.Verbose
}

// Writer returns the destination of verbose output.
func (s Switches) Writer() io.Writer {
	if s.Output == nil {
		return os.Stderr
	}
	return s.Output
}
