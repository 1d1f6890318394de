// Package codeheap is an in-memory code heap that installs finished
// compilations and hands out their entry addresses.
package codeheap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"fortio.org/safecast"

	"jitc/internal/compile"
)

// DefaultBase is the first address handed out by New.
const DefaultBase uint64 = 0x7f00_0000_0000

const alignment = 32

// ErrAlreadyInstalled is returned when the same compilation is installed twice.
var ErrAlreadyInstalled = errors.New("code already installed")

// Entry is one installed blob.
type Entry struct {
	Name      string
	Symbol    string
	Kind      compile.Kind
	CompileID int64
	Start     uint64 // first byte of the blob
	Address   uint64 // entry point
	Size      uint64
	Code      []byte
}

type installKey struct {
	symbol string
	id     int64
}

// Heap assigns addresses to installed code. It is safe for concurrent use.
type Heap struct {
	mu        sync.Mutex
	base      uint64
	next      uint64
	limit     uint64
	entries   []Entry
	bySymbol  map[string]int
	installed map[installKey]struct{}
}

// New creates a heap starting at base; capacity 0 means unbounded.
func New(base, capacity uint64) *Heap {
	if base == 0 {
		base = DefaultBase
	}
	h := &Heap{
		base:      base,
		next:      base,
		bySymbol:  make(map[string]int),
		installed: make(map[installKey]struct{}),
	}
	if capacity > 0 {
		h.limit = base + capacity
	}
	return h
}

// Install implements compile.Installer.
func (h *Heap) Install(_ context.Context, code *compile.CompiledCode) (uint64, error) {
	if code == nil || !code.Finalized {
		return 0, fmt.Errorf("code is not finalized")
	}
	size, err := safecast.Conv[uint64](len(code.Code))
	if err != nil {
		return 0, err
	}
	if size == 0 {
		return 0, fmt.Errorf("%s: empty code", code.Symbol)
	}
	if code.Entry >= size {
		return 0, fmt.Errorf("%s: entry %#x outside %d bytes", code.Symbol, code.Entry, size)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	key := installKey{symbol: code.Symbol, id: code.CompileID}
	if _, dup := h.installed[key]; dup {
		return 0, fmt.Errorf("%w: %s (compile id %d)", ErrAlreadyInstalled, code.Symbol, code.CompileID)
	}
	start := h.next
	end := start + size
	if h.limit != 0 && end > h.limit {
		return 0, fmt.Errorf("code heap exhausted: %d bytes requested, %d free", size, h.limit-start)
	}
	h.next = (end + alignment - 1) &^ (alignment - 1)

	e := Entry{
		Name:      code.Name,
		Symbol:    code.Symbol,
		Kind:      code.Kind,
		CompileID: code.CompileID,
		Start:     start,
		Address:   start + code.Entry,
		Size:      size,
		Code:      slices.Clone(code.Code),
	}
	h.installed[key] = struct{}{}
	// newer code for the same symbol replaces older code in lookups
	h.bySymbol[e.Symbol] = len(h.entries)
	h.entries = append(h.entries, e)
	return e.Address, nil
}

// Len returns the number of installed blobs.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Used returns the number of bytes consumed including alignment padding.
func (h *Heap) Used() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next - h.base
}

// Lookup returns the most recent installation of symbol.
func (h *Heap) Lookup(symbol string) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, ok := h.bySymbol[symbol]
	if !ok {
		return Entry{}, false
	}
	return h.entries[i], true
}

// Resolve returns the entry whose blob contains addr.
func (h *Heap) Resolve(addr uint64) (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i, found := slices.BinarySearchFunc(h.entries, addr, func(e Entry, a uint64) int {
		switch {
		case a < e.Start:
			return 1
		case a >= e.Start+e.Size:
			return -1
		}
		return 0
	})
	if !found {
		return Entry{}, false
	}
	return h.entries[i], true
}

// Entries returns a copy of all installations in address order.
func (h *Heap) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries)
}
