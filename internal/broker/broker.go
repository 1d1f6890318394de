// Package broker compiles batches of methods and stubs on a bounded pool of
// workers, one compilation environment per worker.
package broker

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"jitc/internal/backend"
	"jitc/internal/compile"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/trace"
)

// StubSpec describes a runtime stub task.
type StubSpec struct {
	Address uint64
	Type    host.FunctionType
}

// Task is one unit of work: a method when Method is set, a stub otherwise.
type Task struct {
	Name       string // display name; defaults to the qualified method name
	Method     *host.Method
	EntryBCI   int
	Template   []byte
	Translator compile.Translator
	Stub       *StubSpec
}

// DisplayName returns Name, the qualified method name, or a placeholder.
func (t *Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	if t.Method != nil {
		return t.Method.QualifiedName()
	}
	return "<unnamed>"
}

// Config configures a Broker.
type Config struct {
	Backend  backend.Backend
	Target   backend.Target
	Jobs     int // 0 means GOMAXPROCS
	Switches host.Switches
	Options  compile.Options
	Progress ProgressSink
}

// Outcome is the result of one task.
type Outcome struct {
	Task   string
	Worker int
	Code   *compile.CompiledCode
	Err    error
}

// Failed reports whether the task did not produce code.
func (o Outcome) Failed() bool { return o.Err != nil }

// Broker schedules compilations.
type Broker struct {
	cfg  Config
	envs chan *host.Env
}

// New creates a broker with one environment per worker.
func New(cfg Config) (*Broker, error) {
	if cfg.Backend == nil {
		return nil, errors.New("broker: missing backend")
	}
	if err := cfg.Target.Validate(); err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	jobs := cfg.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	cfg.Jobs = jobs
	b := &Broker{
		cfg:  cfg,
		envs: make(chan *host.Env, jobs),
	}
	for i := 0; i < jobs; i++ {
		b.envs <- host.NewEnv(i, cfg.Switches)
	}
	return b, nil
}

// Jobs returns the number of workers.
func (b *Broker) Jobs() int { return b.cfg.Jobs }

// Run compiles tasks and returns their outcomes in input order. A failing
// task never stops the others; the returned error is non-nil only when ctx
// ends before every task ran.
func (b *Broker) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	span := trace.Begin(ctx, trace.ScopeDriver, "broker")
	ctx = span.Context(ctx)
	defer span.End(fmt.Sprintf("%d tasks", len(tasks)))

	for i := range tasks {
		b.emit(Event{Task: tasks[i].DisplayName(), Stage: StageQueued, Status: StatusQueued})
	}

	outcomes := make([]Outcome, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Jobs)
	for i := range tasks {
		task := &tasks[i]
		g.Go(func() error {
			var env *host.Env
			select {
			case env = <-b.envs:
			case <-gctx.Done():
				outcomes[i] = Outcome{Task: task.DisplayName(), Worker: -1, Err: gctx.Err()}
				return nil
			}
			defer func() { b.envs <- env }()
			outcomes[i] = b.runTask(gctx, env, task)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, ctx.Err()
}

func (b *Broker) runTask(ctx context.Context, env *host.Env, task *Task) Outcome {
	name := task.DisplayName()
	out := Outcome{Task: name, Worker: env.ID()}
	if err := ctx.Err(); err != nil {
		out.Err = err
		b.emit(Event{Task: name, Stage: StageQueued, Status: StatusError, Err: err})
		return out
	}

	opts := b.cfg.Options
	user := opts.PhaseObserver
	opts.PhaseObserver = func(ev compile.PhaseEvent) {
		if user != nil {
			user(ev)
		}
		evt := Event{Task: name, Stage: StageOf(ev.Phase), Status: StatusWorking}
		if ev.Done {
			evt.Status = StatusDone
			evt.Elapsed = ev.Elapsed
			if ev.Failed {
				evt.Status = StatusError
			}
		}
		b.emit(evt)
	}

	switch {
	case task.Method != nil:
		out.Code, out.Err = compile.CompileMethod(ctx, &compile.MethodRequest{
			Backend:    b.cfg.Backend,
			Target:     b.cfg.Target,
			Env:        env,
			Method:     task.Method,
			EntryBCI:   task.EntryBCI,
			Template:   task.Template,
			Translator: task.Translator,
			Options:    opts,
		})
	case task.Stub != nil:
		// Each stub compilation owns its module context.
		out.Code, out.Err = compile.CompileStub(ctx, &compile.StubRequest{
			Backend: b.cfg.Backend,
			Target:  b.cfg.Target,
			Env:     env,
			Context: ir.NewContext(),
			Name:    name,
			Address: task.Stub.Address,
			Type:    task.Stub.Type,
			Options: opts,
		})
	default:
		out.Err = fmt.Errorf("task %s has neither method nor stub", name)
	}
	if out.Err != nil && out.Code == nil {
		b.emit(Event{Task: name, Stage: StageQueued, Status: StatusError, Err: out.Err})
	}
	return out
}

func (b *Broker) emit(evt Event) {
	if b.cfg.Progress != nil {
		b.cfg.Progress.OnEvent(evt)
	}
}

// Stats summarizes outcomes.
type Stats struct {
	Total     int
	Succeeded int
	Failed    int
	Installed int
}

// Summarize counts outcomes.
func Summarize(outcomes []Outcome) Stats {
	st := Stats{Total: len(outcomes)}
	for _, o := range outcomes {
		if o.Failed() {
			st.Failed++
			continue
		}
		st.Succeeded++
		if o.Code != nil && o.Code.Installed {
			st.Installed++
		}
	}
	return st
}
