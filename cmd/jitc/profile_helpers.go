package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"jitc/internal/prof"
)

// setupProfiling starts the profilers named by --cpu-profile,
// --runtime-trace and --mem-profile. The heap profile is written by the
// cleanup, which runs its work once.
func setupProfiling(cmd *cobra.Command) (func(), error) {
	pf := cmd.Root().PersistentFlags()
	paths := make(map[string]string, 3)
	for _, name := range []string{"cpu-profile", "runtime-trace", "mem-profile"} {
		v, err := pf.GetString(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		paths[name] = v
	}

	var stops []func()
	stopAll := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}
	if p := paths["cpu-profile"]; p != "" {
		if err := prof.StartCPU(p); err != nil {
			return nil, fmt.Errorf("failed to start cpu profile: %w", err)
		}
		stops = append(stops, prof.StopCPU)
	}
	if p := paths["runtime-trace"]; p != "" {
		if err := prof.StartTrace(p); err != nil {
			stopAll()
			return nil, fmt.Errorf("failed to start runtime trace: %w", err)
		}
		stops = append(stops, prof.StopTrace)
	}
	if p := paths["mem-profile"]; p != "" {
		stops = append([]func(){func() {
			if err := prof.WriteMem(p); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to write heap profile: %v\n", err)
			}
		}}, stops...)
	}

	var once sync.Once
	return func() { once.Do(stopAll) }, nil
}
