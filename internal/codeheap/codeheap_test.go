package codeheap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"jitc/internal/compile"
)

func finalized(symbol string, id int64, size int, entry uint64) *compile.CompiledCode {
	return &compile.CompiledCode{
		Name:      symbol,
		Symbol:    symbol,
		Kind:      compile.KindMethod,
		CompileID: id,
		Code:      make([]byte, size),
		Entry:     entry,
		Finalized: true,
	}
}

func TestInstall_AssignsAlignedAddresses(t *testing.T) {
	h := New(0x1000, 0)
	a, err := h.Install(context.Background(), finalized("a", 1, 10, 2))
	if err != nil {
		t.Fatal(err)
	}
	b, err := h.Install(context.Background(), finalized("b", 1, 4, 0))
	if err != nil {
		t.Fatal(err)
	}
	if a != 0x1002 {
		t.Fatalf("a = %#x, want 0x1002", a)
	}
	if b != 0x1020 {
		t.Fatalf("b = %#x, want 0x1020", b)
	}
	if h.Len() != 2 || h.Used() != 0x40 {
		t.Fatalf("len=%d used=%#x", h.Len(), h.Used())
	}
	e, ok := h.Resolve(0x1005)
	if !ok || e.Symbol != "a" {
		t.Fatalf("resolve inside a: %+v %v", e, ok)
	}
	if _, ok := h.Resolve(0x1010); ok {
		t.Fatalf("padding resolved to an entry")
	}
}

func TestInstall_RejectsDuplicatesAndBadCode(t *testing.T) {
	h := New(0, 0)
	code := finalized("m", 7, 8, 0)
	if _, err := h.Install(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Install(context.Background(), code); !errors.Is(err, ErrAlreadyInstalled) {
		t.Fatalf("expected ErrAlreadyInstalled, got %v", err)
	}
	if _, err := h.Install(context.Background(), finalized("m", 8, 8, 0)); err != nil {
		t.Fatalf("recompilation rejected: %v", err)
	}
	e, _ := h.Lookup("m")
	if e.CompileID != 8 {
		t.Fatalf("lookup returned compile id %d, want 8", e.CompileID)
	}

	bad := finalized("x", 1, 4, 9)
	if _, err := h.Install(context.Background(), bad); err == nil {
		t.Fatalf("entry outside code accepted")
	}
	bad = finalized("y", 1, 4, 0)
	bad.Finalized = false
	if _, err := h.Install(context.Background(), bad); err == nil {
		t.Fatalf("unfinalized code accepted")
	}
}

func TestInstall_Capacity(t *testing.T) {
	h := New(0x1000, 64)
	if _, err := h.Install(context.Background(), finalized("a", 1, 40, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Install(context.Background(), finalized("b", 1, 40, 0)); err == nil {
		t.Fatalf("expected exhaustion")
	}
}

func TestInstall_Concurrent(t *testing.T) {
	h := New(0, 0)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := h.Install(context.Background(), finalized("f", int64(i+1), 16, 0)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	entries := h.Entries()
	if len(entries) != 32 {
		t.Fatalf("entries = %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Start <= entries[i-1].Start {
			t.Fatalf("entries not in address order")
		}
	}
}
