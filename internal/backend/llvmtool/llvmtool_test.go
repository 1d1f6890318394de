package llvmtool

import (
	"bytes"
	"context"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"jitc/internal/arena"
	"jitc/internal/backend"
	"jitc/internal/host"
	"jitc/internal/ir"
)

func TestArgs(t *testing.T) {
	target := backend.Target{Triple: "x86_64-unknown-linux-gnu", CPU: "skylake", Features: "+avx2", OptLevel: 2}

	opt := optArgs(target, "in.ll", "out.ll")
	want := []string{"-O2", "-S", "-mtriple=x86_64-unknown-linux-gnu", "-mcpu=skylake", "in.ll", "-o", "out.ll"}
	if !slices.Equal(opt, want) {
		t.Errorf("optArgs = %v, want %v", opt, want)
	}

	llc := llcArgs(target, "in.ll", "out.o")
	if !slices.Contains(llc, "-filetype=obj") || !slices.Contains(llc, "-mattr=+avx2") || llc[len(llc)-1] != "out.o" {
		t.Errorf("unexpected llc args %v", llc)
	}

	clang := clangArgs(backend.Target{OptLevel: 0}, "in.ll", "out.o")
	if slices.ContainsFunc(clang, func(s string) bool { return strings.HasPrefix(s, "--target=") }) {
		t.Errorf("empty triple must not produce --target: %v", clang)
	}
}

func TestNew_MissingTools(t *testing.T) {
	_, err := New(Config{Opt: "/nonexistent/opt"})
	if err == nil || !strings.Contains(err.Error(), "opt not found") {
		t.Fatalf("expected opt lookup error, got %v", err)
	}
}

func TestParseObject_RejectsGarbage(t *testing.T) {
	if _, err := ParseObject([]byte("not an object")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOptimize_RequiresSealedModule(t *testing.T) {
	b := &Backend{}
	mod := ir.NewContext().NewModule(arena.NewRegion(), "m")
	if err := b.Optimize(context.Background(), mod, backend.Target{}); err == nil {
		t.Fatal("expected error for unsealed module")
	}
}

func TestEndToEnd(t *testing.T) {
	for _, tool := range []string{"opt", "llc"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not available", tool)
		}
	}
	var printed bytes.Buffer
	b, err := New(Config{PrintCommands: true, Stdout: &printed, WorkDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	mod := ir.NewContext().NewModule(arena.NewRegion(), "e2e")
	mod.Triple = "x86_64-unknown-linux-gnu"
	if _, err := ir.BuildStubWrapper(mod, "stub_entry", 0x1000, host.FunctionType{Ret: "i64", Params: []string{"i64"}}); err != nil {
		t.Fatal(err)
	}
	mod.Seal()
	target := backend.Target{Triple: mod.Triple, OptLevel: 2}
	if err := b.Optimize(context.Background(), mod, target); err != nil {
		t.Fatal(err)
	}
	if _, ok := mod.Optimized(); !ok {
		t.Fatal("expected optimized text")
	}
	obj, err := b.Generate(context.Background(), mod, target)
	if err != nil {
		t.Fatal(err)
	}
	if len(obj.Code) == 0 || obj.Format != "elf64-x86-64" {
		t.Fatalf("unexpected object %+v", obj)
	}
	if _, ok := obj.Lookup("stub_entry"); !ok {
		t.Fatalf("stub symbol missing from %+v", obj.Symbols)
	}
	if !strings.Contains(printed.String(), "-filetype=obj") {
		t.Fatalf("expected printed commands, got %q", printed.String())
	}
}
