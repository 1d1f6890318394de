// Package main implements the jitc CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"jitc/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "jitc",
	Short:         "Per-method JIT compilation driver",
	Long:          `jitc compiles methods and runtime stubs through an LLVM backend and reports per-phase compile times`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(timersCmd)
	rootCmd.AddCommand(newVersionCmd())

	pf := rootCmd.PersistentFlags()
	pf.String("color", "auto", "colorize output (auto|on|off)")
	pf.Bool("quiet", false, "suppress non-essential output")
	pf.String("config", "", "path to jitc.toml (default: searched upward from the working directory)")

	pf.Bool("ci-time", false, "accumulate compile-phase timers and print them at exit")
	pf.Bool("ci-time-each", false, "measure every compilation individually")
	pf.Bool("ci-time-verbose", false, "print a line per timed phase (with --ci-time-each)")

	pf.String("trace", "", "trace output file (\"-\" for stderr, *.ndjson selects ndjson)")
	pf.String("trace-level", "off", "trace level (off|error|session|phase|debug)")
	pf.String("trace-mode", "stream", "trace mode (stream|ring|both)")
	pf.String("trace-format", "text", "trace format (text|ndjson)")
	pf.Int("trace-ring-size", 4096, "events kept by the ring tracer")
	pf.Duration("trace-heartbeat", 0, "emit heartbeat events at this interval (0 disables)")

	pf.String("cpu-profile", "", "write a CPU profile to file")
	pf.String("mem-profile", "", "write a heap profile to file")
	pf.String("runtime-trace", "", "write a runtime trace to file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
