// Package backend defines the boundary between a compilation and the
// optimizing code generator it delegates to.
package backend

import (
	"context"
	"fmt"
	"strings"

	"jitc/internal/ir"
)

// Target describes the machine code is generated for.
type Target struct {
	Triple   string
	CPU      string
	Features string
	OptLevel int
	Layout   ir.DataLayout
}

// Validate checks the target description.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Triple) == "" {
		return fmt.Errorf("target triple is empty")
	}
	if t.OptLevel < 0 || t.OptLevel > 3 {
		return fmt.Errorf("optimization level %d out of range 0..3", t.OptLevel)
	}
	return nil
}

// Key identifies the target for caching purposes.
func (t Target) Key() string {
	return fmt.Sprintf("%s|%s|%s|O%d|%s", t.Triple, t.CPU, t.Features, t.OptLevel, t.Layout.Spec)
}

// Symbol is a symbol defined or referenced by an object.
type Symbol struct {
	Name    string
	Offset  uint64
	Size    uint64
	Defined bool
}

// Relocation is a fixup the installer must apply.
type Relocation struct {
	Offset uint64
	Type   uint32
	Symbol string
	Addend int64
}

// Object is the backend's output for one module.
type Object struct {
	Format      string // e.g. "elf64-x86-64"
	Code        []byte // contents of the text section
	Symbols     []Symbol
	Relocations []Relocation
	StackMaps   []byte
	DebugInfo   bool
}

// Lookup returns the defined symbol called name.
func (o *Object) Lookup(name string) (Symbol, bool) {
	if o == nil {
		return Symbol{}, false
	}
	for _, s := range o.Symbols {
		if s.Defined && s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Optimizer rewrites a sealed module in place via ir.Module.SetOptimized.
type Optimizer interface {
	Optimize(ctx context.Context, mod *ir.Module, t Target) error
}

// CodeGenerator lowers a module to machine code.
type CodeGenerator interface {
	Generate(ctx context.Context, mod *ir.Module, t Target) (*Object, error)
}

// Backend is a complete external backend.
type Backend interface {
	Optimizer
	CodeGenerator
	Name() string
}
