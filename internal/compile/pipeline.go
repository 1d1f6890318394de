package compile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jitc/internal/codecache"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
	"jitc/internal/prof"
	"jitc/internal/trace"
)

// Run drives the session through build IR, optimize, codegen and finalize.
// The first reported error skips the remaining phases except finalize, which
// always runs and records the failure. Run may be called once.
func (s *Session) Run(ctx context.Context) (*CompiledCode, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.closed.Load() {
		return nil, errors.New("session is closed")
	}
	if s.ran {
		return nil, errors.New("session already ran")
	}
	s.ran = true
	ctx = host.WithEnv(ctx, s.env)

	span := trace.Begin(ctx, trace.ScopeSession, s.name).
		WithExtra("kind", s.kind.String())
	ctx = span.Context(ctx)

	total := s.startTimer(ctx, phasetime.PhaseCompile)
	tctx := total.Context(ctx)
	func() {
		defer total.Stop()
		defer s.recoverPanic(phasetime.PhaseCompile)

		s.guard("initialize", s.initialize)
		s.step(tctx, phasetime.PhaseBuildIR, s.buildIR)
		s.step(tctx, phasetime.PhaseOptimize, s.optimize)
		s.step(tctx, phasetime.PhaseCodegen, s.codegen)
		s.run(tctx, phasetime.PhaseFinalize, s.finalize)
	}()

	for _, p := range phasetime.Phases() {
		s.code.Timings[p] = s.timers[p].Elapsed()
	}
	s.traceError(ctx)
	if err := s.Err(); err != nil {
		span.End(err.Error())
		return &s.code, err
	}
	span.End("ok")
	return &s.code, nil
}

// step runs fn under the timer of phase unless the session already failed.
func (s *Session) step(ctx context.Context, phase phasetime.Phase, fn func(context.Context)) {
	if s.ErrorOccurred() {
		return
	}
	s.run(ctx, phase, fn)
}

// run times fn and notifies the phase observer around it. Only finalize runs
// after the observer itself failed.
func (s *Session) run(ctx context.Context, phase phasetime.Phase, fn func(context.Context)) {
	s.observe(PhaseEvent{Session: s.name, Phase: phase})
	var elapsed time.Duration
	if phase == phasetime.PhaseFinalize || !s.ErrorOccurred() {
		elapsed = s.timed(ctx, phase, fn)
	}
	s.observe(PhaseEvent{Session: s.name, Phase: phase, Done: true, Failed: s.ErrorOccurred(), Elapsed: elapsed})
}

func (s *Session) timed(ctx context.Context, phase phasetime.Phase, fn func(context.Context)) (elapsed time.Duration) {
	t := s.startTimer(ctx, phase)
	defer func() { elapsed = t.Stop() }()
	defer s.recoverPanic(phase)
	prof.Labels(t.Context(ctx), phase.String(), s.name, fn)
	return elapsed
}

func (s *Session) observe(ev PhaseEvent) {
	if s.opts.PhaseObserver == nil {
		return
	}
	s.guard("phase observer", func() { s.opts.PhaseObserver(ev) })
}

func (s *Session) recoverPanic(phase phasetime.Phase) {
	if r := recover(); r != nil {
		s.ReportErrorf("panic in %s: %v", phase, r)
	}
}

// guard runs fn and turns a panic into the session failure, so the pipeline
// still reaches finalize.
func (s *Session) guard(where string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.ReportErrorf("panic in %s: %v", where, r)
		}
	}()
	fn()
}

func (s *Session) initialize() {
	if err := s.target.Validate(); err != nil {
		s.ReportError(err.Error())
		return
	}
	switch s.kind {
	case KindMethod:
		if err := s.method.Compilable(); err != nil {
			s.ReportError(err.Error())
			return
		}
		if s.entryBCI != host.InvocationEntryBCI {
			s.ReportError("OSR compilation is not supported")
			return
		}
		if s.translator == nil {
			s.ReportError("no bytecode translator")
			return
		}
	case KindStub:
		if s.name == "" {
			s.ReportError("stub without name")
			return
		}
		if s.stubAddr == 0 {
			s.ReportErrorf("stub %s: null native address", s.name)
			return
		}
	}
	if s.irctx == nil {
		s.irctx = ir.NewContext()
	}
	mod := s.irctx.NewModule(s.region, s.symbol)
	mod.Triple = s.target.Triple
	mod.Layout = s.target.Layout
	if len(s.template) > 0 {
		if err := mod.LoadTemplate(s.template); err != nil {
			s.ReportErrorf("template: %v", err)
			return
		}
	}
	s.module = mod
}

func (s *Session) buildIR(ctx context.Context) {
	switch s.kind {
	case KindMethod:
		if err := s.translator.Translate(ctx, s, s.module, s.method); err != nil {
			s.ReportError(err.Error())
		}
		if s.ErrorOccurred() {
			return
		}
		h, ok := s.module.Lookup(s.symbol)
		if !ok || s.module.Function(h).Declaration() {
			s.ReportErrorf("translator did not define %s", s.symbol)
			return
		}
	case KindStub:
		if _, err := ir.BuildStubWrapper(s.module, s.symbol, s.stubAddr, s.stubType); err != nil {
			s.ReportError(err.Error())
			return
		}
	}
	if err := s.module.Verify(); err != nil {
		s.ReportErrorf("invalid IR: %v", err)
		return
	}
	s.dump(ctx, ".ll", []byte(s.module.Render()))
}

func (s *Session) optimize(ctx context.Context) {
	s.module.Seal()
	if err := s.backend.Optimize(ctx, s.module, s.target); err != nil {
		s.ReportErrorf("optimizer: %v", err)
		return
	}
	if text, ok := s.module.Optimized(); ok {
		s.dump(ctx, "-optimized.ll", []byte(text))
	}
}

func (s *Session) codegen(ctx context.Context) {
	key := codecache.Key(s.target, s.module.Text())
	if obj, ok, err := s.opts.Cache.Get(key, s.target); err != nil {
		trace.Error(ctx, trace.ScopeBackend, "cache get", err.Error())
	} else if ok {
		trace.Point(ctx, trace.ScopeBackend, "cache hit", key.String())
		s.object = obj
		return
	}
	obj, err := s.backend.Generate(ctx, s.module, s.target)
	if err != nil {
		s.ReportErrorf("code generation: %v", err)
		return
	}
	if obj == nil {
		s.ReportError("code generation produced no object")
		return
	}
	s.object = obj
	if err := s.opts.Cache.Put(key, s.target, obj); err != nil {
		trace.Error(ctx, trace.ScopeBackend, "cache put", err.Error())
	}
	s.dump(ctx, ".bin", obj.Code)
}

// finalize runs even after a failure so the failure is recorded.
func (s *Session) finalize(ctx context.Context) {
	if msg := s.ErrorMessage(); msg != "" {
		s.code.Failure = msg
		return
	}
	if err := s.code.finalize(s.object); err != nil {
		s.ReportError(err.Error())
		s.code.Failure = s.ErrorMessage()
		return
	}
	if !s.opts.InstallCode {
		return
	}
	if s.opts.Installer == nil {
		s.ReportError("code installation requested without an installer")
		s.code.Failure = s.ErrorMessage()
		return
	}
	addr, err := s.opts.Installer.Install(ctx, &s.code)
	if err != nil {
		s.ReportError(fmt.Sprintf("install: %v", err))
		s.code.Failure = s.ErrorMessage()
		return
	}
	s.code.Installed = true
	s.code.InstallAddress = addr
}
