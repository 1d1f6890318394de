package compile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"jitc/internal/arena"
	"jitc/internal/backend"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
	"jitc/internal/trace"
)

// Kind distinguishes method compilations from stub compilations.
type Kind uint8

const (
	KindMethod Kind = iota + 1
	KindStub
)

func (k Kind) String() string {
	switch k {
	case KindMethod:
		return "method"
	case KindStub:
		return "stub"
	default:
		return "unknown"
	}
}

// Session is one compilation attempt. It is not safe for concurrent use,
// except for the error API which may be called from any goroutine helping
// the compilation.
type Session struct {
	kind    Kind
	name    string
	symbol  string
	env     *host.Env
	region  *arena.Region
	backend backend.Backend
	target  backend.Target
	opts    Options

	// method form
	method     *host.Method
	entryBCI   int
	template   []byte
	translator Translator

	// stub form
	stubAddr uint64
	stubType host.FunctionType

	irctx  *ir.Context
	module *ir.Module
	object *backend.Object
	code   CompiledCode

	errMsg atomic.Pointer[string]
	timers [phasetime.NumPhases]phasetime.Accumulator

	ran    bool
	closed atomic.Bool
}

// NewMethodSession creates a session for req and attaches it to req.Env.
// The returned context carries the environment; pass it to Run.
func NewMethodSession(ctx context.Context, req *MethodRequest) (*Session, context.Context, error) {
	if req == nil {
		return nil, ctx, fmt.Errorf("missing method request")
	}
	if req.Method == nil {
		return nil, ctx, fmt.Errorf("missing method")
	}
	s := &Session{
		kind:       KindMethod,
		name:       req.Method.QualifiedName(),
		symbol:     ir.MangleName(req.Method.Holder, req.Method.Name, req.Method.Signature),
		backend:    req.Backend,
		target:     req.Target,
		opts:       req.Options,
		method:     req.Method,
		entryBCI:   req.EntryBCI,
		template:   req.Template,
		translator: req.Translator,
		irctx:      ir.NewContext(),
	}
	return s.attach(ctx, req.Env)
}

// NewStubSession creates a session compiling a wrapper around a native
// routine and attaches it to req.Env.
func NewStubSession(ctx context.Context, req *StubRequest) (*Session, context.Context, error) {
	if req == nil {
		return nil, ctx, fmt.Errorf("missing stub request")
	}
	s := &Session{
		kind:     KindStub,
		name:     req.Name,
		symbol:   req.Name,
		backend:  req.Backend,
		target:   req.Target,
		opts:     req.Options,
		entryBCI: host.InvocationEntryBCI,
		stubAddr: req.Address,
		stubType: req.Type,
		irctx:    req.Context,
	}
	return s.attach(ctx, req.Env)
}

func (s *Session) attach(ctx context.Context, env *host.Env) (*Session, context.Context, error) {
	if env == nil {
		return nil, ctx, fmt.Errorf("missing compilation environment")
	}
	if s.backend == nil {
		return nil, ctx, fmt.Errorf("missing backend")
	}
	if s.opts.Registry == nil {
		s.opts.Registry = phasetime.Default
	}
	if !env.ClaimCompilerData(s) {
		return nil, ctx, ErrSessionActive
	}
	s.env = env
	s.region = arena.NewRegion()
	s.code = CompiledCode{
		Name:      s.name,
		Symbol:    s.symbol,
		Kind:      s.kind,
		EntryBCI:  s.entryBCI,
		CompileID: env.NextCompileID(),
	}
	return s, host.WithEnv(ctx, env), nil
}

// Close releases the arena and detaches the session from its environment.
// It is safe to call more than once. CompiledCode stays valid after Close.
func (s *Session) Close() {
	if s == nil || !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.module = nil
	s.object = nil
	s.region.Release()
	s.env.ReleaseCompilerData(s)
}

// ReportError records msg as the failure cause unless one is already
// recorded. Empty messages are ignored.
func (s *Session) ReportError(msg string) {
	if msg == "" {
		return
	}
	s.errMsg.CompareAndSwap(nil, &msg)
}

// ReportErrorf formats and reports an error.
func (s *Session) ReportErrorf(format string, args ...any) {
	s.ReportError(fmt.Sprintf(format, args...))
}

// ErrorOccurred reports whether the session has failed.
func (s *Session) ErrorOccurred() bool {
	return s.errMsg.Load() != nil
}

// ErrorMessage returns the first reported error, or "".
func (s *Session) ErrorMessage() string {
	if p := s.errMsg.Load(); p != nil {
		return *p
	}
	return ""
}

// Err returns the failure as an *Error, or nil.
func (s *Session) Err() error {
	if p := s.errMsg.Load(); p != nil {
		return &Error{Name: s.name, Msg: *p}
	}
	return nil
}

// Arena returns the region holding compilation-lifetime objects. Allocations
// from it become invalid when the session is closed.
func (s *Session) Arena() *arena.Region { return s.region }

// CompiledCode returns the result artifact.
func (s *Session) CompiledCode() *CompiledCode { return &s.code }

// Module returns the IR module, or nil before initialization or after Close.
func (s *Session) Module() *ir.Module { return s.module }

// FinalizeTimer returns the accumulator credited by the finalize phase.
func (s *Session) FinalizeTimer() *phasetime.Accumulator {
	return &s.timers[phasetime.PhaseFinalize]
}

// Timer returns the local accumulator of phase p.
func (s *Session) Timer(p phasetime.Phase) *phasetime.Accumulator {
	if !p.Valid() {
		return nil
	}
	return &s.timers[p]
}

// Timings returns the time spent in each phase by this session.
func (s *Session) Timings() map[phasetime.Phase]time.Duration {
	out := make(map[phasetime.Phase]time.Duration, phasetime.NumPhases)
	for _, p := range phasetime.Phases() {
		out[p] = s.timers[p].Elapsed()
	}
	return out
}

// Name returns the qualified method name or the stub name.
func (s *Session) Name() string { return s.name }

// Symbol returns the IR symbol of the compiled entry point.
func (s *Session) Symbol() string { return s.symbol }

// Kind reports the session form.
func (s *Session) Kind() Kind { return s.kind }

// Env returns the environment the session is attached to.
func (s *Session) Env() *host.Env { return s.env }

// Method returns the method being compiled, nil for stubs.
func (s *Session) Method() *host.Method { return s.method }

func (s *Session) startTimer(ctx context.Context, phase phasetime.Phase) *phasetime.Timer {
	return phasetime.Start(ctx, phasetime.Options{
		Name:     phase.String() + " " + s.name,
		Phase:    phase,
		Registry: s.opts.Registry,
		Local:    &s.timers[phase],
		Switches: s.env.Switches(),
		Clock:    s.opts.Clock,
	})
}

func (s *Session) traceError(ctx context.Context) {
	if msg := s.ErrorMessage(); msg != "" {
		trace.Error(ctx, trace.ScopeSession, s.name, msg)
	}
}
