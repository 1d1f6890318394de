package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jitc/internal/backend"
	"jitc/internal/compile"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
)

const samplePlan = `
[target]
triple = "x86_64-unknown-linux-gnu"
opt_level = 1

[[method]]
holder = "demo/Math"
name = "add"
signature = "(II)I"
ret = "i32"
params = ["i32", "i32"]
bytecode = "1a 1b 60 ac"
body = """
  %t0 = add i32 %a0, %a1
  ret i32 %t0
"""

[[method]]
holder = "demo/Math"
name = "abs"
signature = "(I)I"
ret = "i32"
params = ["i32"]
template = "runtime.ll"
body = """
entry:
  %neg = icmp slt i32 %a0, 0
  br i1 %neg, label %flip, label %done
flip:
  %m = sub i32 0, %a0
  ret i32 %m
done:
  ret i32 %a0
"""

[[stub]]
name = "jitc_new_instance"
address = 0x401000
ret = "ptr"
params = ["ptr", "i32"]
`

func writePlan(t *testing.T, text string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.toml")
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}
	runtime := "declare void @jitc_safepoint()\n"
	if err := os.WriteFile(filepath.Join(dir, "runtime.ll"), []byte(runtime), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPlan_Tasks(t *testing.T) {
	path := writePlan(t, samplePlan)
	plan, err := readPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Target.OptLevel == nil || *plan.Target.OptLevel != 1 {
		t.Fatalf("opt level not decoded")
	}
	tasks, err := plan.tasks(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("tasks = %d", len(tasks))
	}
	if got := tasks[0].Method.CodeSize(); got != 4 {
		t.Fatalf("bytecode size = %d", got)
	}
	if !strings.Contains(string(tasks[1].Template), "jitc_safepoint") {
		t.Fatalf("template not loaded")
	}
	stub := tasks[2]
	if stub.Stub == nil || stub.Stub.Address != 0x401000 || stub.DisplayName() != "jitc_new_instance" {
		t.Fatalf("unexpected stub task: %+v", stub)
	}
}

func TestReadPlan_Errors(t *testing.T) {
	cases := map[string]string{
		"empty":       "[target]\ntriple = \"x\"\n",
		"unknown key": "[[stub]]\nname = \"s\"\naddress = 1\ncolour = \"red\"\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := readPlan(writePlan(t, text)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	plan, err := readPlan(writePlan(t, "[[stub]]\nname = \"s\"\naddress = -1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := plan.tasks("."); err == nil {
		t.Fatalf("negative address accepted")
	}
}

func TestParseBody(t *testing.T) {
	blocks := parseBody(`
  ; leading comment
  %x = add i32 1, 2
  br label %next
next:
  ret i32 %x
`)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %d", len(blocks))
	}
	if blocks[0].Label != "entry" || len(blocks[0].Instrs) != 2 {
		t.Fatalf("first block = %+v", blocks[0])
	}
	if blocks[1].Label != "next" || blocks[1].Instrs[0] != "ret i32 %x" {
		t.Fatalf("second block = %+v", blocks[1])
	}
	if len(parseBody("\n ; nothing\n")) != 0 {
		t.Fatalf("comment-only body produced blocks")
	}
}

type textBackend struct{}

func (textBackend) Name() string { return "text" }

func (textBackend) Optimize(context.Context, *ir.Module, backend.Target) error { return nil }

func (textBackend) Generate(ctx context.Context, mod *ir.Module, _ backend.Target) (*backend.Object, error) {
	s := compile.MustCurrent(ctx)
	return &backend.Object{
		Code:    []byte(mod.Text()),
		Symbols: []backend.Symbol{{Name: s.Symbol(), Defined: true}},
	}, nil
}

func TestBodyTranslator_DefinesMethod(t *testing.T) {
	tr := bodyTranslator{
		typ:  host.FunctionType{Ret: "i32", Params: []string{"i32"}},
		body: "ret i32 %a0",
	}
	code, err := compile.CompileMethod(context.Background(), &compile.MethodRequest{
		Backend:    textBackend{},
		Target:     backend.Target{Triple: "x86_64-unknown-linux-gnu"},
		Env:        host.NewEnv(0, host.Switches{}),
		Method:     &host.Method{Holder: "demo/Id", Name: "id", Signature: "(I)I"},
		EntryBCI:   host.InvocationEntryBCI,
		Translator: tr,
		Options:    compile.Options{Registry: &phasetime.Registry{}},
	})
	if err != nil {
		t.Fatal(err)
	}
	text := string(code.Code)
	if !strings.Contains(text, "define i32 @\"demo.Id.id(I)I\"(i32 %a0)") || !strings.Contains(text, "ret i32 %a0") {
		t.Fatalf("unexpected module:\n%s", text)
	}

	_, err = compile.CompileMethod(context.Background(), &compile.MethodRequest{
		Backend:    textBackend{},
		Target:     backend.Target{Triple: "x86_64-unknown-linux-gnu"},
		Env:        host.NewEnv(0, host.Switches{}),
		Method:     &host.Method{Name: "empty", Signature: "()V"},
		EntryBCI:   host.InvocationEntryBCI,
		Translator: bodyTranslator{},
		Options:    compile.Options{Registry: &phasetime.Registry{}},
	})
	if err == nil || !strings.Contains(err.Error(), "no IR body") {
		t.Fatalf("expected missing body error, got %v", err)
	}
}
