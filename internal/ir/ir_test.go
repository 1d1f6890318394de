package ir

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"jitc/internal/arena"
	"jitc/internal/host"
)

func newModule(t *testing.T) *Module {
	t.Helper()
	m := NewContext().NewModule(arena.NewRegion(), "test")
	m.Triple = "x86_64-unknown-linux-gnu"
	return m
}

func TestContext_UniqueModuleNames(t *testing.T) {
	ctx := NewContext()
	r := arena.NewRegion()
	a := ctx.NewModule(r, "stub")
	b := ctx.NewModule(r, "stub")
	if a.Name != "stub" || b.Name != "stub.1" {
		t.Fatalf("names = %q, %q", a.Name, b.Name)
	}
	if ctx.Modules() != 2 {
		t.Fatalf("Modules() = %d, want 2", ctx.Modules())
	}
	if a.Context() != ctx {
		t.Fatal("module must remember its context")
	}
}

func TestBuildStubWrapper(t *testing.T) {
	m := newModule(t)
	typ := host.FunctionType{Ret: "i64", Params: []string{"ptr", "i32"}}
	h, err := BuildStubWrapper(m, "jitc_new_instance", 0x7f00, typ)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	fn := m.Function(h)
	if fn.Declaration() || len(fn.Blocks) != 1 {
		t.Fatalf("unexpected function %+v", fn)
	}
	text := m.Text()
	for _, want := range []string{
		`target triple = "x86_64-unknown-linux-gnu"`,
		"define i64 @jitc_new_instance(ptr %a0, i32 %a1) nounwind",
		"%t0 = inttoptr i64 32512 to ptr",
		"%t1 = tail call i64 %t0(ptr %a0, i32 %a1)",
		"ret i64 %t1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestBuildStubWrapper_Void(t *testing.T) {
	m := newModule(t)
	if _, err := BuildStubWrapper(m, "safepoint", 16, host.FunctionType{}); err != nil {
		t.Fatal(err)
	}
	text := m.Text()
	if !strings.Contains(text, "tail call void %t0()") || !strings.Contains(text, "ret void") {
		t.Fatalf("unexpected body:\n%s", text)
	}
}

func TestBuildStubWrapper_Rejects(t *testing.T) {
	m := newModule(t)
	if _, err := BuildStubWrapper(m, "x", 0, host.FunctionType{}); err == nil {
		t.Error("expected error for null address")
	}
	if _, err := BuildStubWrapper(m, "y", 1, host.FunctionType{Variadic: true}); err == nil {
		t.Error("expected error for variadic type")
	}
}

func TestModule_DuplicatesAndDeclarations(t *testing.T) {
	m := newModule(t)
	typ := host.FunctionType{Ret: "i32"}
	decl, err := m.Declare("f", typ)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := m.Declare("f", typ)
	if again != decl {
		t.Fatal("Declare must be idempotent")
	}
	def, err := m.AddFunction(Function{Name: "f", Type: typ, Blocks: []Block{{Label: "entry", Instrs: []string{"ret i32 0"}}}})
	if err != nil || def != decl {
		t.Fatalf("definition must replace declaration: %v", err)
	}
	if _, err := m.AddFunction(Function{Name: "f", Type: typ}); !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if m.NumFunctions() != 1 {
		t.Fatalf("NumFunctions() = %d", m.NumFunctions())
	}
}

func TestModule_SealAndOptimize(t *testing.T) {
	m := newModule(t)
	if err := m.SetOptimized("x"); err == nil {
		t.Fatal("optimizing an open module must fail")
	}
	m.Seal()
	if _, err := m.AddFunction(Function{Name: "g"}); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if err := m.AddGlobal("@g = global i32 0"); !errors.Is(err, ErrSealed) {
		t.Fatalf("expected ErrSealed, got %v", err)
	}
	if err := m.SetOptimized("; optimized\n"); err != nil {
		t.Fatal(err)
	}
	if got, ok := m.Optimized(); !ok || m.Text() != got {
		t.Fatal("Text must return the optimized form")
	}
	if strings.Contains(m.Render(), "optimized") {
		t.Fatal("Render must ignore optimized text")
	}
}

func TestBuilder_KeepsBlocksAcrossDeclarations(t *testing.T) {
	m := newModule(t)
	h, err := m.AddFunction(Function{Name: "f", Type: host.FunctionType{Ret: "void"}})
	if err != nil {
		t.Fatal(err)
	}
	b := NewBuilder(m, h).Block("entry")
	for i := range 12 {
		name := fmt.Sprintf("callee%d", i)
		if _, err := m.Declare(name, host.FunctionType{Ret: "void"}); err != nil {
			t.Fatal(err)
		}
		b.Call("void", "@"+name, nil, false)
	}
	b.Raw("br label %exit")
	b.Block("exit").Ret("void", "")

	if err := m.Verify(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	fn := m.Function(h)
	if len(fn.Blocks) != 2 || len(fn.Blocks[0].Instrs) != 13 {
		t.Fatalf("unexpected body %+v", fn.Blocks)
	}
	text := m.Text()
	for _, want := range []string{"call void @callee11()", "exit:\n  ret void"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in:\n%s", want, text)
		}
	}
}

func TestModule_Verify(t *testing.T) {
	m := newModule(t)
	_, _ = m.AddFunction(Function{Name: "bad", Blocks: []Block{
		{Label: "entry", Instrs: []string{"%x = add i32 1, 2"}},
		{Label: "entry", Instrs: []string{"br label %entry"}},
	}})
	err := m.Verify()
	if err == nil {
		t.Fatal("expected verify errors")
	}
	msg := err.Error()
	if !strings.Contains(msg, "no terminator") || !strings.Contains(msg, "duplicate block") {
		t.Fatalf("unexpected error %q", msg)
	}
	empty := NewContext().NewModule(arena.NewRegion(), "empty")
	if empty.Verify() == nil {
		t.Fatal("empty module must not verify")
	}
}

func TestLoadTemplate(t *testing.T) {
	m := NewContext().NewModule(arena.NewRegion(), "tpl")
	tpl := []byte(`; ModuleID = 'template'
source_filename = "template"
target datalayout = "e-m:e-i64:64-n8:16:32:64-S128"
target triple = "x86_64-unknown-linux-gnu"

@jitc.safepoint = external global i8
declare ptr @jitc_alloc(i64)
define i32 @"helper.one"() {
entry:
  ret i32 1
}
`)
	if err := m.LoadTemplate(tpl); err != nil {
		t.Fatal(err)
	}
	if m.Triple != "x86_64-unknown-linux-gnu" || m.Layout.Spec != "e-m:e-i64:64-n8:16:32:64-S128" {
		t.Fatalf("target lines not lifted: %q %q", m.Triple, m.Layout.Spec)
	}
	if !m.Templated("jitc_alloc") || !m.Templated("helper.one") {
		t.Fatal("template symbols must be reserved")
	}
	if _, err := m.AddFunction(Function{Name: "jitc_alloc"}); !errors.Is(err, ErrDuplicateSymbol) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if h, err := m.Declare("jitc_alloc", host.FunctionType{}); err != nil || h.IsValid() {
		t.Fatal("declaring a templated symbol is a no-op")
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("template-only module should verify: %v", err)
	}
	text := m.Text()
	if strings.Count(text, "target triple") != 1 || !strings.Contains(text, "declare ptr @jitc_alloc(i64)") {
		t.Fatalf("unexpected text:\n%s", text)
	}

	conflict := NewContext().NewModule(arena.NewRegion(), "c")
	conflict.Triple = "aarch64-unknown-linux-gnu"
	if err := conflict.LoadTemplate([]byte(`target triple = "x86_64-unknown-linux-gnu"`)); err == nil {
		t.Fatal("expected triple conflict")
	}
}

func TestMangleAndQuote(t *testing.T) {
	name := MangleName("java/lang/Math", "max", "(II)I")
	if name != "java.lang.Math.max(II)I" {
		t.Fatalf("MangleName = %q", name)
	}
	quoted := QuoteIdent(name)
	if quoted != `"java.lang.Math.max(II)I"` {
		t.Fatalf("QuoteIdent = %q", quoted)
	}
	if QuoteIdent("plain_name.1") != "plain_name.1" {
		t.Fatal("plain identifiers stay unquoted")
	}
	if QuoteIdent("1abc") != `"1abc"` {
		t.Fatal("leading digit requires quoting")
	}
	// "e" followed by a combining acute accent composes to U+00E9.
	if got := MangleName("", "cafe\u0301", "()V"); got != "caf\u00e9()V" {
		t.Fatalf("expected NFC composition, got %q", got)
	}
	for _, s := range []string{name, "a\"b\\c", "caf\u00e9()V"} {
		if UnquoteIdent(QuoteIdent(s)) != s {
			t.Errorf("round trip failed for %q", s)
		}
	}
}
