package compile

import (
	"fmt"
	"slices"
	"time"

	"jitc/internal/backend"
	"jitc/internal/phasetime"
)

// CompiledCode is the artifact produced by a session. It outlives the
// session's arena.
type CompiledCode struct {
	Name      string
	Symbol    string
	Kind      Kind
	CompileID int64
	EntryBCI  int

	Format      string
	Code        []byte
	Entry       uint64 // offset of Symbol within Code
	Symbols     []backend.Symbol
	Relocations []backend.Relocation
	StackMaps   []byte

	Finalized      bool
	Installed      bool
	InstallAddress uint64
	Failure        string

	Timings [phasetime.NumPhases]time.Duration
}

// Failed reports whether the compilation recorded a failure.
func (c *CompiledCode) Failed() bool { return c.Failure != "" }

func (c *CompiledCode) finalize(obj *backend.Object) error {
	if obj == nil {
		return fmt.Errorf("no object to finalize")
	}
	sym, ok := obj.Lookup(c.Symbol)
	if !ok {
		return fmt.Errorf("object does not define %s", c.Symbol)
	}
	if sym.Offset >= uint64(len(obj.Code)) {
		return fmt.Errorf("entry of %s at %#x is outside the code (%d bytes)", c.Symbol, sym.Offset, len(obj.Code))
	}
	c.Format = obj.Format
	c.Code = slices.Clone(obj.Code)
	c.Entry = sym.Offset
	c.Symbols = slices.Clone(obj.Symbols)
	c.Relocations = slices.Clone(obj.Relocations)
	c.StackMaps = slices.Clone(obj.StackMaps)
	c.Finalized = true
	return nil
}
