package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"jitc/internal/backend"
	"jitc/internal/codeheap"
	"jitc/internal/compile"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
)

type echoBackend struct{}

func (echoBackend) Name() string { return "echo" }

func (echoBackend) Optimize(_ context.Context, mod *ir.Module, _ backend.Target) error {
	return mod.SetOptimized(mod.Render())
}

func (echoBackend) Generate(ctx context.Context, _ *ir.Module, _ backend.Target) (*backend.Object, error) {
	s, err := compile.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &backend.Object{
		Format:  "echo",
		Code:    []byte(s.Symbol()),
		Symbols: []backend.Symbol{{Name: s.Symbol(), Defined: true}},
	}, nil
}

func returnZero(_ context.Context, s *compile.Session, mod *ir.Module, _ *host.Method) error {
	h, err := mod.AddFunction(ir.Function{Name: s.Symbol(), Type: host.FunctionType{Ret: "i32"}})
	if err != nil {
		return err
	}
	ir.NewBuilder(mod, h).Ret("i32", "0")
	return nil
}

func failing(ctx context.Context, _ *compile.Session, _ *ir.Module, m *host.Method) error {
	compile.ReportErrorf(ctx, "cannot translate %s", m.Name)
	return nil
}

func methodTask(name string, tr compile.TranslatorFunc) Task {
	return Task{
		Method:     &host.Method{Holder: "demo/T", Name: name, Signature: "()I"},
		EntryBCI:   host.InvocationEntryBCI,
		Translator: tr,
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) count(task string, stage Stage, status Status) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Task == task && e.Stage == stage && e.Status == status {
			n++
		}
	}
	return n
}

func newBroker(t *testing.T, jobs int, sink ProgressSink, heap *codeheap.Heap) *Broker {
	t.Helper()
	opts := compile.Options{Registry: &phasetime.Registry{}}
	if heap != nil {
		opts.InstallCode = true
		opts.Installer = heap
	}
	b, err := New(Config{
		Backend:  echoBackend{},
		Target:   backend.Target{Triple: "x86_64-unknown-linux-gnu"},
		Jobs:     jobs,
		Options:  opts,
		Progress: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBroker_FailuresDoNotCancelSiblings(t *testing.T) {
	sink := &recordingSink{}
	heap := codeheap.New(0, 0)
	b := newBroker(t, 2, sink, heap)
	tasks := []Task{
		methodTask("a", returnZero),
		methodTask("bad", failing),
		methodTask("c", returnZero),
		{Name: "jitc_stub", Stub: &StubSpec{Address: 0x4000, Type: host.FunctionType{Ret: "void"}}},
	}
	outs, err := b.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(outs) != len(tasks) {
		t.Fatalf("outcomes = %d", len(outs))
	}
	wantNames := []string{"demo/T.a()I", "demo/T.bad()I", "demo/T.c()I", "jitc_stub"}
	for i, o := range outs {
		if o.Task != wantNames[i] {
			t.Fatalf("outcome %d is %s, want %s", i, o.Task, wantNames[i])
		}
	}
	if !outs[1].Failed() || !errors.Is(outs[1].Err, compile.ErrCompilationFailed) {
		t.Fatalf("bad task outcome: %+v", outs[1])
	}
	st := Summarize(outs)
	if st != (Stats{Total: 4, Succeeded: 3, Failed: 1, Installed: 3}) {
		t.Fatalf("stats = %+v", st)
	}
	if heap.Len() != 3 {
		t.Fatalf("heap holds %d entries", heap.Len())
	}
	if sink.count("demo/T.bad()I", StageBuildIR, StatusError) != 1 {
		t.Fatalf("missing build ir error event")
	}
	if sink.count("demo/T.a()I", StageInstall, StatusDone) != 1 {
		t.Fatalf("missing install done event")
	}
	if sink.count("jitc_stub", StageQueued, StatusQueued) != 1 {
		t.Fatalf("missing queued event")
	}
}

func TestBroker_RecompileInstallsOnAnyWorker(t *testing.T) {
	heap := codeheap.New(0, 0)
	b := newBroker(t, 2, nil, heap)
	first, err := b.Run(context.Background(), []Task{methodTask("foo", returnZero)})
	if err != nil || first[0].Err != nil {
		t.Fatalf("first compile: %v %v", err, first[0].Err)
	}
	for round := range 3 {
		outs, err := b.Run(context.Background(), []Task{methodTask("foo", returnZero), methodTask("foo", returnZero)})
		if err != nil {
			t.Fatal(err)
		}
		for i, o := range outs {
			if o.Err != nil {
				t.Fatalf("round %d task %d on worker %d: %v", round, i, o.Worker, o.Err)
			}
			if !o.Code.Installed {
				t.Fatalf("round %d task %d not installed", round, i)
			}
		}
		if outs[0].Code.CompileID == outs[1].Code.CompileID {
			t.Fatalf("round %d reused compile id %d", round, outs[0].Code.CompileID)
		}
	}
	if heap.Len() != 7 {
		t.Fatalf("heap holds %d entries, want 7", heap.Len())
	}
	if _, ok := heap.Lookup("demo.T.foo()I"); !ok {
		t.Fatal("recompiled method not found")
	}
}

type moduleNames struct {
	echoBackend
	mu    sync.Mutex
	names []string
}

func (m *moduleNames) Generate(ctx context.Context, mod *ir.Module, t backend.Target) (*backend.Object, error) {
	m.mu.Lock()
	m.names = append(m.names, mod.Name)
	m.mu.Unlock()
	return m.echoBackend.Generate(ctx, mod, t)
}

func TestBroker_StubsOwnTheirContext(t *testing.T) {
	be := &moduleNames{}
	b, err := New(Config{Backend: be, Target: backend.Target{Triple: "x86_64-unknown-linux-gnu"}, Jobs: 2})
	if err != nil {
		t.Fatal(err)
	}
	stub := Task{Name: "jitc_stub", Stub: &StubSpec{Address: 0x4000, Type: host.FunctionType{Ret: "void"}}}
	outs, err := b.Run(context.Background(), []Task{stub, stub, stub})
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outs {
		if o.Err != nil {
			t.Fatalf("%s: %v", o.Task, o.Err)
		}
	}
	if len(be.names) != 3 {
		t.Fatalf("generated %d modules", len(be.names))
	}
	for _, name := range be.names {
		if name != "jitc_stub" {
			t.Fatalf("stub module named %q; contexts are shared", name)
		}
	}
}

func TestBroker_OneSessionPerWorker(t *testing.T) {
	b := newBroker(t, 3, nil, nil)
	tasks := make([]Task, 24)
	for i := range tasks {
		tasks[i] = methodTask(fmt.Sprintf("m%d", i), returnZero)
	}
	outs, err := b.Run(context.Background(), tasks)
	if err != nil {
		t.Fatal(err)
	}
	for _, o := range outs {
		if o.Err != nil {
			t.Fatalf("%s: %v", o.Task, o.Err)
		}
		if o.Worker < 0 || o.Worker >= 3 {
			t.Fatalf("%s ran on worker %d", o.Task, o.Worker)
		}
	}
}

func TestBroker_CanceledContext(t *testing.T) {
	b := newBroker(t, 1, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outs, err := b.Run(ctx, []Task{methodTask("a", returnZero), methodTask("b", returnZero)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	for _, o := range outs {
		if !errors.Is(o.Err, context.Canceled) {
			t.Fatalf("%s: %v", o.Task, o.Err)
		}
	}
}

func TestNew_Validates(t *testing.T) {
	if _, err := New(Config{Target: backend.Target{Triple: "x"}}); err == nil {
		t.Fatalf("missing backend accepted")
	}
	if _, err := New(Config{Backend: echoBackend{}}); err == nil {
		t.Fatalf("empty triple accepted")
	}
	b, err := New(Config{Backend: echoBackend{}, Target: backend.Target{Triple: "x"}})
	if err != nil || b.Jobs() < 1 {
		t.Fatalf("default jobs: %v %d", err, b.Jobs())
	}
}

func TestStageOf(t *testing.T) {
	if StageOf(phasetime.PhaseFinalize) != StageInstall || StageOf(phasetime.PhaseCompile) != StageQueued {
		t.Fatalf("unexpected stage mapping")
	}
}
