// Package ir is the intermediate form a compilation hands to the backend: a
// textual LLVM module whose functions live in the compilation's arena.
package ir

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"jitc/internal/arena"
	"jitc/internal/host"
)

var (
	// ErrSealed is returned when a module is mutated after handoff.
	ErrSealed = errors.New("ir: module sealed")
	// ErrDuplicateSymbol is returned when a symbol is defined twice.
	ErrDuplicateSymbol = errors.New("ir: duplicate symbol")
)

// DataLayout is the target data layout string.
type DataLayout struct {
	Spec string
}

func (d DataLayout) String() string { return d.Spec }

// Context owns a family of modules. Module names are unique per context.
type Context struct {
	mu    sync.Mutex
	names map[string]int
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{names: make(map[string]int)}
}

// Modules reports how many modules the context created.
func (c *Context) Modules() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.names {
		total += n
	}
	return total
}

func (c *Context) uniqueName(base string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.names[base]
	c.names[base] = n + 1
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s.%d", base, n)
}

// Linkage of a function definition.
type Linkage string

const (
	LinkageExternal Linkage = ""
	LinkageInternal Linkage = "internal"
	LinkagePrivate  Linkage = "private"
)

// Block is a labelled list of instructions.
type Block struct {
	Label  string
	Instrs []string
}

// Function is a declaration or definition.
type Function struct {
	Name     string
	Type     host.FunctionType
	Linkage  Linkage
	CallConv string
	Attrs    []string
	GC       string
	Blocks   []Block
}

// Declaration reports whether f has no body.
func (f *Function) Declaration() bool { return len(f.Blocks) == 0 }

// Module is a unit handed to the backend.
type Module struct {
	Name   string
	Triple string
	Layout DataLayout

	ctx       *Context
	funcs     *arena.Arena[Function]
	byName    map[string]arena.Handle[Function]
	templated map[string]bool
	globals   []string
	prefix    []string
	optimized string
	sealed    bool
}

// NewModule creates a module whose functions are allocated from region.
func (c *Context) NewModule(region *arena.Region, name string) *Module {
	return &Module{
		Name:      c.uniqueName(name),
		ctx:       c,
		funcs:     arena.NewArena[Function](region, 8),
		byName:    make(map[string]arena.Handle[Function]),
		templated: make(map[string]bool),
	}
}

// Context returns the owning context.
func (m *Module) Context() *Context { return m.ctx }

// AddFunction adds f. A definition may replace an earlier declaration of
// the same name.
func (m *Module) AddFunction(f Function) (arena.Handle[Function], error) {
	if m.sealed {
		return 0, ErrSealed
	}
	if f.Name == "" {
		return 0, fmt.Errorf("ir: function without name")
	}
	if m.templated[f.Name] {
		return 0, fmt.Errorf("%w: @%s is defined by the template", ErrDuplicateSymbol, f.Name)
	}
	if h, ok := m.byName[f.Name]; ok {
		existing := m.funcs.Get(h)
		if !existing.Declaration() || f.Declaration() {
			return 0, fmt.Errorf("%w: @%s", ErrDuplicateSymbol, f.Name)
		}
		*existing = f
		return h, nil
	}
	h := m.funcs.Allocate(f)
	m.byName[f.Name] = h
	return h, nil
}

// Declare adds an external declaration unless name is already known.
func (m *Module) Declare(name string, typ host.FunctionType) (arena.Handle[Function], error) {
	if h, ok := m.byName[name]; ok {
		return h, nil
	}
	if m.templated[name] {
		return 0, nil
	}
	return m.AddFunction(Function{Name: name, Type: typ})
}

// Function returns the function behind h.
func (m *Module) Function(h arena.Handle[Function]) *Function {
	return m.funcs.Get(h)
}

// Lookup finds a function by name.
func (m *Module) Lookup(name string) (arena.Handle[Function], bool) {
	h, ok := m.byName[name]
	return h, ok
}

// NumFunctions reports the number of functions, declarations included.
func (m *Module) NumFunctions() int { return m.funcs.Len() }

// AddGlobal appends a global definition line.
func (m *Module) AddGlobal(line string) error {
	if m.sealed {
		return ErrSealed
	}
	m.globals = append(m.globals, strings.TrimRight(line, "\n"))
	return nil
}

// Seal freezes the function list. The backend may still replace the text
// through SetOptimized.
func (m *Module) Seal() { m.sealed = true }

// Sealed reports whether the module was handed off.
func (m *Module) Sealed() bool { return m.sealed }

// SetOptimized stores the backend's optimized text. It requires a sealed
// module; afterwards Text returns the optimized form.
func (m *Module) SetOptimized(text string) error {
	if !m.sealed {
		return fmt.Errorf("ir: module %s optimized before handoff", m.Name)
	}
	m.optimized = text
	return nil
}

// Optimized returns the optimized text, if any.
func (m *Module) Optimized() (string, bool) {
	return m.optimized, m.optimized != ""
}

// Text renders the module. Once optimized, the optimized text is returned.
func (m *Module) Text() string {
	if m.optimized != "" {
		return m.optimized
	}
	return m.Render()
}

// Render renders the module from its functions, ignoring optimized text.
func (m *Module) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; ModuleID = '%s'\n", m.Name)
	if m.Layout.Spec != "" {
		fmt.Fprintf(&sb, "target datalayout = \"%s\"\n", m.Layout.Spec)
	}
	if m.Triple != "" {
		fmt.Fprintf(&sb, "target triple = \"%s\"\n", m.Triple)
	}
	sb.WriteString("\n")
	for _, line := range m.prefix {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if len(m.prefix) > 0 {
		sb.WriteString("\n")
	}
	for _, g := range m.globals {
		sb.WriteString(g)
		sb.WriteString("\n")
	}
	if len(m.globals) > 0 {
		sb.WriteString("\n")
	}
	m.funcs.Each(func(_ arena.Handle[Function], f *Function) bool {
		if f.Declaration() {
			writeSignature(&sb, "declare", f)
			sb.WriteString("\n")
		}
		return true
	})
	m.funcs.Each(func(_ arena.Handle[Function], f *Function) bool {
		if f.Declaration() {
			return true
		}
		sb.WriteString("\n")
		writeSignature(&sb, "define", f)
		sb.WriteString(" {\n")
		for _, b := range f.Blocks {
			sb.WriteString(b.Label)
			sb.WriteString(":\n")
			for _, in := range b.Instrs {
				sb.WriteString("  ")
				sb.WriteString(in)
				sb.WriteString("\n")
			}
		}
		sb.WriteString("}\n")
		return true
	})
	return sb.String()
}

func writeSignature(sb *strings.Builder, kw string, f *Function) {
	sb.WriteString(kw)
	if f.Linkage != LinkageExternal && kw == "define" {
		sb.WriteString(" ")
		sb.WriteString(string(f.Linkage))
	}
	if f.CallConv != "" {
		sb.WriteString(" ")
		sb.WriteString(f.CallConv)
	}
	ret := f.Type.Ret
	if ret == "" {
		ret = "void"
	}
	fmt.Fprintf(sb, " %s @%s(", ret, QuoteIdent(f.Name))
	for i, p := range f.Type.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p)
		if kw == "define" {
			fmt.Fprintf(sb, " %%a%d", i)
		}
	}
	if f.Type.Variadic {
		if len(f.Type.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteString(")")
	for _, a := range f.Attrs {
		sb.WriteString(" ")
		sb.WriteString(a)
	}
	if f.GC != "" {
		fmt.Fprintf(sb, " gc \"%s\"", f.GC)
	}
}
