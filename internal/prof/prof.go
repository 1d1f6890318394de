// Package prof wraps the runtime profilers used by the CLI and tags compile
// phases with pprof labels.
package prof

import (
	"context"
	"errors"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
)

var (
	mu        sync.Mutex
	cpuFile   *os.File
	traceFile *os.File
)

// StartCPU enables CPU profiling and writes samples to path.
func StartCPU(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if cpuFile != nil {
		return errors.New("cpu profile already running")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return err
	}
	cpuFile = f
	return nil
}

// StopCPU stops an active CPU profile and closes the file.
func StopCPU() {
	mu.Lock()
	defer mu.Unlock()
	if cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	_ = cpuFile.Close()
	cpuFile = nil
}

// WriteMem captures a heap profile to path.
func WriteMem(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}

// StartTrace writes runtime trace data to path.
func StartTrace(path string) error {
	mu.Lock()
	defer mu.Unlock()
	if traceFile != nil {
		return errors.New("runtime trace already running")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return err
	}
	traceFile = f
	return nil
}

// StopTrace ends an active runtime trace and closes the file.
func StopTrace() {
	mu.Lock()
	defer mu.Unlock()
	if traceFile == nil {
		return
	}
	trace.Stop()
	_ = traceFile.Close()
	traceFile = nil
}

// Labels runs fn with CPU samples labelled by compile phase and unit, and
// inside a runtime trace region of the same name.
func Labels(ctx context.Context, phase, unit string, fn func(context.Context)) {
	labels := pprof.Labels("phase", phase, "unit", unit)
	pprof.Do(ctx, labels, func(ctx context.Context) {
		defer trace.StartRegion(ctx, phase).End()
		fn(ctx)
	})
}
