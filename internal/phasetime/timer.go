package phasetime

import (
	"context"
	"fmt"
	"io"
	"time"

	"jitc/internal/host"
	"jitc/internal/trace"
)

// Clock abstracts time for the timers.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a Timer.
type Options struct {
	Name     string
	Phase    Phase
	Registry *Registry     // nil means Default
	Local    *Accumulator  // per-compilation counter, always credited
	Switches host.Switches // decides registry crediting and verbosity
	Clock    Clock         // nil means the wall clock
}

// Timer measures one execution of a phase.
type Timer struct {
	name    string
	phase   Phase
	slot    *Slot
	local   *Accumulator
	active  bool
	verbose bool
	out     io.Writer
	clock   Clock
	start   time.Time
	span    *trace.Span
	stopped bool
}

// Start begins timing. The clock runs when the registry is active or a local
// accumulator is attached.
func Start(ctx context.Context, opts Options) *Timer {
	reg := opts.Registry
	if reg == nil {
		reg = Default
	}
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	t := &Timer{
		name:    opts.Name,
		phase:   opts.Phase,
		slot:    reg.Slot(opts.Phase),
		local:   opts.Local,
		active:  opts.Switches.Active(),
		verbose: opts.Switches.VerboseEach(),
		out:     opts.Switches.Writer(),
		clock:   clock,
	}
	if t.name == "" {
		t.name = opts.Phase.String()
	}
	if t.active || t.local != nil {
		t.start = clock.Now()
	}
	t.span = trace.Begin(ctx, trace.ScopePhase, t.name)
	return t
}

// Context returns ctx with the timer's trace span as parent.
func (t *Timer) Context(ctx context.Context) context.Context {
	return t.span.Context(ctx)
}

// Stop ends the measurement and credits the accumulators. Only the first call
// has an effect. Stop never panics.
func (t *Timer) Stop() time.Duration {
	if t == nil || t.stopped {
		return 0
	}
	t.stopped = true
	var elapsed time.Duration
	if t.active || t.local != nil {
		elapsed = t.clock.Now().Sub(t.start)
	}
	if t.local != nil {
		t.local.Add(elapsed)
	}
	if t.active && t.slot != nil {
		t.slot.add(elapsed)
		if t.verbose {
			_, _ = fmt.Fprintf(t.out, "[%s, %3.7f secs]\n", t.name, elapsed.Seconds())
		}
	}
	t.span.End("")
	return elapsed
}

// Name returns the printed name of the timer.
func (t *Timer) Name() string { return t.name }

// Phase returns the phase credited by the timer.
func (t *Timer) Phase() Phase { return t.phase }
