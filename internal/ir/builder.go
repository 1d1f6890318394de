package ir

import (
	"fmt"
	"strings"

	"jitc/internal/arena"
)

// Builder appends instructions to a function body. It resolves the function
// through its module on every operation and never caches the pointer.
type Builder struct {
	mod   *Module
	fn    arena.Handle[Function]
	block int
	tmp   int
}

// NewBuilder positions a builder at the end of function h of m.
func NewBuilder(m *Module, h arena.Handle[Function]) *Builder {
	b := &Builder{mod: m, fn: h, block: -1}
	if f := b.function(); f != nil {
		b.block = len(f.Blocks) - 1
	}
	return b
}

func (b *Builder) function() *Function {
	f := b.mod.Function(b.fn)
	if f == nil {
		panic(fmt.Sprintf("ir: builder on unknown function %d of %s", b.fn, b.mod.Name))
	}
	return f
}

// Block starts a new block and makes it current.
func (b *Builder) Block(label string) *Builder {
	f := b.function()
	f.Blocks = append(f.Blocks, Block{Label: label})
	b.block = len(f.Blocks) - 1
	return b
}

// Param returns the SSA name of parameter i.
func (b *Builder) Param(i int) string { return fmt.Sprintf("%%a%d", i) }

// Fresh returns an unused temporary name.
func (b *Builder) Fresh() string {
	name := fmt.Sprintf("%%t%d", b.tmp)
	b.tmp++
	return name
}

// Raw appends instr verbatim.
func (b *Builder) Raw(instr string) {
	if b.block < 0 {
		b.Block("entry")
	}
	blk := &b.function().Blocks[b.block]
	blk.Instrs = append(blk.Instrs, instr)
}

// IntToPtr materialises a constant address as a pointer.
func (b *Builder) IntToPtr(addr uint64) string {
	name := b.Fresh()
	b.Raw(fmt.Sprintf("%s = inttoptr i64 %d to ptr", name, addr))
	return name
}

// Call emits a call through callee and returns the result name, or "" for void.
func (b *Builder) Call(ret, callee string, args []string, tail bool) string {
	if ret == "" {
		ret = "void"
	}
	kw := "call"
	if tail {
		kw = "tail call"
	}
	call := fmt.Sprintf("%s %s %s(%s)", kw, ret, callee, strings.Join(args, ", "))
	if ret == "void" {
		b.Raw(call)
		return ""
	}
	name := b.Fresh()
	b.Raw(name + " = " + call)
	return name
}

// Ret terminates the current block.
func (b *Builder) Ret(ty, val string) {
	if ty == "" || ty == "void" {
		b.Raw("ret void")
		return
	}
	b.Raw(fmt.Sprintf("ret %s %s", ty, val))
}
