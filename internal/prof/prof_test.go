package prof

import (
	"context"
	"os"
	"path/filepath"
	"runtime/pprof"
	"testing"
)

func TestLabels(t *testing.T) {
	var phase, unit string
	Labels(context.Background(), "codegen", "demo.f()V", func(ctx context.Context) {
		phase, _ = pprof.Label(ctx, "phase")
		unit, _ = pprof.Label(ctx, "unit")
	})
	if phase != "codegen" || unit != "demo.f()V" {
		t.Fatalf("labels = %q, %q", phase, unit)
	}
}

func TestWriteMem(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.pprof")
	if err := WriteMem(path); err != nil {
		t.Fatal(err)
	}
	if st, err := os.Stat(path); err != nil || st.Size() == 0 {
		t.Fatalf("heap profile missing: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	StopCPU()
	StopTrace()
}
