package ir

import (
	"errors"
	"fmt"
	"strings"

	"jitc/internal/arena"
)

var terminators = []string{"ret", "br", "switch", "indirectbr", "unreachable", "resume"}

// Terminated reports whether the block ends with a terminator instruction.
func (b *Block) Terminated() bool {
	if len(b.Instrs) == 0 {
		return false
	}
	last := strings.TrimSpace(b.Instrs[len(b.Instrs)-1])
	if i := strings.Index(last, "= "); i >= 0 && strings.HasPrefix(last, "%") {
		last = strings.TrimSpace(last[i+2:])
	}
	for _, t := range terminators {
		if last == t || strings.HasPrefix(last, t+" ") {
			return true
		}
	}
	return false
}

// Verify checks the structure of every defined function.
func (m *Module) Verify() error {
	var errs []error
	if m.funcs.Len() == 0 && len(m.prefix) == 0 {
		errs = append(errs, fmt.Errorf("module %s is empty", m.Name))
	}
	m.funcs.Each(func(_ arena.Handle[Function], f *Function) bool {
		if f.Declaration() {
			return true
		}
		labels := make(map[string]bool, len(f.Blocks))
		for i := range f.Blocks {
			b := &f.Blocks[i]
			if b.Label == "" {
				errs = append(errs, fmt.Errorf("@%s: block %d has no label", f.Name, i))
				continue
			}
			if labels[b.Label] {
				errs = append(errs, fmt.Errorf("@%s: duplicate block %%%s", f.Name, b.Label))
			}
			labels[b.Label] = true
			if !b.Terminated() {
				errs = append(errs, fmt.Errorf("@%s: block %%%s has no terminator", f.Name, b.Label))
			}
		}
		return true
	})
	return errors.Join(errs...)
}
