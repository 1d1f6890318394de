package compile

import (
	"context"
	"time"

	"jitc/internal/backend"
	"jitc/internal/codecache"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
)

// Translator turns a method's bytecode into IR. It reports failures through
// ReportError; a returned error is reported the same way.
type Translator interface {
	Translate(ctx context.Context, s *Session, mod *ir.Module, m *host.Method) error
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(ctx context.Context, s *Session, mod *ir.Module, m *host.Method) error

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, s *Session, mod *ir.Module, m *host.Method) error {
	return f(ctx, s, mod, m)
}

// Installer publishes finished code to the host and returns its entry address.
type Installer interface {
	Install(ctx context.Context, code *CompiledCode) (uint64, error)
}

// PhaseEvent reports the start or end of a timed phase.
type PhaseEvent struct {
	Session string
	Phase   phasetime.Phase
	Done    bool
	Failed  bool
	Elapsed time.Duration
}

// Options are shared by both session forms.
type Options struct {
	InstallCode bool
	Installer   Installer
	Cache       *codecache.Cache
	DumpDir     string
	Registry    *phasetime.Registry // nil means phasetime.Default
	Clock       phasetime.Clock
	// PhaseObserver, when set, is called synchronously around each phase.
	PhaseObserver func(PhaseEvent)
}

// MethodRequest describes the compilation of a method.
type MethodRequest struct {
	Backend    backend.Backend
	Target     backend.Target
	Env        *host.Env
	Method     *host.Method
	EntryBCI   int    // host.InvocationEntryBCI for a normal entry
	Template   []byte // optional pre-seeded IR
	Translator Translator
	Options
}

// StubRequest describes the compilation of a runtime stub calling a native
// routine.
type StubRequest struct {
	Backend backend.Backend
	Target  backend.Target
	Env     *host.Env
	Context *ir.Context
	Name    string
	Address uint64
	Type    host.FunctionType
	Options
}
