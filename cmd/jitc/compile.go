package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"jitc/internal/backend"
	"jitc/internal/backend/llvmtool"
	"jitc/internal/broker"
	"jitc/internal/codecache"
	"jitc/internal/codeheap"
	"jitc/internal/compile"
	"jitc/internal/host"
	"jitc/internal/ir"
	"jitc/internal/phasetime"
	"jitc/internal/trace"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] <plan.toml>",
	Short: "Compile the methods and stubs listed in a plan",
	Long:  "Compile every [[method]] and [[stub]] of a TOML plan through the LLVM tools and report the outcome of each.",
	Args:  cobra.ExactArgs(1),
	RunE:  compileExecution,
}

func init() {
	compileCmd.Flags().Int("jobs", 0, "number of compiler workers (0 = GOMAXPROCS)")
	compileCmd.Flags().Int("opt-level", 2, "optimization level (0..3)")
	compileCmd.Flags().String("triple", "", "target triple (default: plan or host)")
	compileCmd.Flags().String("cpu", "", "target CPU")
	compileCmd.Flags().String("dump-dir", "", "write IR and code of every compilation to this directory")
	compileCmd.Flags().Bool("cache", false, "reuse generated objects from the user cache")
	compileCmd.Flags().Bool("install", false, "install finished code into an in-memory code heap")
	compileCmd.Flags().Bool("print-commands", false, "print the LLVM tool invocations")
	compileCmd.Flags().String("ui", "auto", "progress UI (auto|on|off)")
	compileCmd.Flags().String("timers-json", "", "write the phase-timer report as JSON to this file")
}

// compileSettings merges flags, jitc.toml and the plan.
type compileSettings struct {
	jobs          int
	target        backend.Target
	dumpDir       string
	cache         bool
	install       bool
	printCommands bool
	ui            uiMode
	switches      host.Switches
	ciTime        bool
	quiet         bool
	tools         toolsConfig
	timersJSON    string
}

func readCompileSettings(cmd *cobra.Command, cfg fileConfig, plan *compilePlan) (compileSettings, error) {
	var st compileSettings
	flags := cmd.Flags()
	pf := cmd.Root().PersistentFlags()

	var err error
	if st.jobs, err = flags.GetInt("jobs"); err != nil {
		return st, err
	}
	if !flags.Changed("jobs") && cfg.Compile.Jobs > 0 {
		st.jobs = cfg.Compile.Jobs
	}

	opt, err := flags.GetInt("opt-level")
	if err != nil {
		return st, err
	}
	if !flags.Changed("opt-level") {
		switch {
		case plan.Target.OptLevel != nil:
			opt = *plan.Target.OptLevel
		case cfg.Compile.OptLevel != nil:
			opt = *cfg.Compile.OptLevel
		}
	}

	triple, err := flags.GetString("triple")
	if err != nil {
		return st, err
	}
	triple = firstNonEmpty(triple, plan.Target.Triple, cfg.Compile.Triple, hostTriple())
	cpu, err := flags.GetString("cpu")
	if err != nil {
		return st, err
	}
	cpu = firstNonEmpty(cpu, plan.Target.CPU, cfg.Compile.CPU)
	st.target = backend.Target{
		Triple:   triple,
		CPU:      cpu,
		Features: plan.Target.Features,
		OptLevel: opt,
		Layout:   ir.DataLayout{Spec: plan.Target.DataLayout},
	}
	if err := st.target.Validate(); err != nil {
		return st, err
	}

	if st.dumpDir, err = flags.GetString("dump-dir"); err != nil {
		return st, err
	}
	st.dumpDir = firstNonEmpty(st.dumpDir, cfg.Compile.DumpDir)
	if st.cache, err = flags.GetBool("cache"); err != nil {
		return st, err
	}
	st.cache = st.cache || cfg.Compile.Cache
	if st.install, err = flags.GetBool("install"); err != nil {
		return st, err
	}
	if st.printCommands, err = flags.GetBool("print-commands"); err != nil {
		return st, err
	}
	uiValue, err := flags.GetString("ui")
	if err != nil {
		return st, err
	}
	if st.ui, err = readUIMode(uiValue); err != nil {
		return st, err
	}

	if st.ciTime, err = pf.GetBool("ci-time"); err != nil {
		return st, err
	}
	each, err := pf.GetBool("ci-time-each")
	if err != nil {
		return st, err
	}
	verbose, err := pf.GetBool("ci-time-verbose")
	if err != nil {
		return st, err
	}
	st.ciTime = st.ciTime || cfg.Timing.CITime
	st.switches = host.Switches{
		MeasureCompileTime: st.ciTime,
		MeasureEach:        each || cfg.Timing.CITimeEach,
		Verbose:            verbose || cfg.Timing.CITimeVerbose,
		Output:             cmd.ErrOrStderr(),
	}
	if st.quiet, err = pf.GetBool("quiet"); err != nil {
		return st, err
	}
	if st.timersJSON, err = flags.GetString("timers-json"); err != nil {
		return st, err
	}
	st.tools = cfg.Tools
	return st, nil
}

func compileExecution(cmd *cobra.Command, args []string) error {
	applyColorFlag(cmd)

	cleanupTrace, err := setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanupTrace()
	cleanupProf, err := setupProfiling(cmd)
	if err != nil {
		return err
	}
	defer cleanupProf()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	planPath := args[0]
	plan, err := readPlan(planPath)
	if err != nil {
		return err
	}
	st, err := readCompileSettings(cmd, cfg, plan)
	if err != nil {
		return err
	}
	tasks, err := plan.tasks(filepath.Dir(planPath))
	if err != nil {
		return err
	}

	be, err := llvmtool.New(llvmtool.Config{
		Opt:           st.tools.Opt,
		LLC:           st.tools.LLC,
		Clang:         st.tools.Clang,
		PrintCommands: st.printCommands,
		Stdout:        cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	opts := compile.Options{DumpDir: st.dumpDir, Registry: phasetime.Default}
	if st.cache {
		cache, err := codecache.Open("jitc")
		if err != nil {
			return err
		}
		opts.Cache = cache
	}
	var heap *codeheap.Heap
	if st.install {
		heap = codeheap.New(codeheap.DefaultBase, 0)
		opts.InstallCode = true
		opts.Installer = heap
	}

	cfgBroker := broker.Config{
		Backend:  be,
		Target:   st.target,
		Jobs:     st.jobs,
		Switches: st.switches,
		Options:  opts,
	}
	ctx := cmd.Context()
	useTUI := shouldUseTUI(st.ui) && !st.quiet
	outcomes, runErr := runBroker(ctx, cfgBroker, tasks, useTUI)
	if outcomes == nil && runErr != nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if !st.quiet {
		printOutcomes(out, outcomes)
	}
	stats := broker.Summarize(outcomes)
	if !st.quiet {
		printSummary(out, stats, heap)
	}
	if st.ciTime {
		if err := phasetime.Default.Print(cmd.ErrOrStderr()); err != nil {
			return err
		}
	}
	if st.timersJSON != "" {
		if err := writeTimerReport(st.timersJSON, phasetime.Default.Snapshot()); err != nil {
			return err
		}
	}
	if stats.Failed > 0 {
		dumpTraceRing(cmd)
		return fmt.Errorf("%d of %d compilations failed", stats.Failed, stats.Total)
	}
	return runErr
}

func runBroker(ctx context.Context, cfg broker.Config, tasks []broker.Task, useTUI bool) ([]broker.Outcome, error) {
	if useTUI {
		return runBrokerWithUI(ctx, "compiling", cfg, tasks)
	}
	b, err := broker.New(cfg)
	if err != nil {
		return nil, err
	}
	return b.Run(ctx, tasks)
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	dimColor  = color.New(color.Faint)
)

func printOutcomes(out io.Writer, outcomes []broker.Outcome) {
	for _, o := range outcomes {
		if o.Failed() {
			fmt.Fprintf(out, "%s %s: %s\n", failColor.Sprint("FAIL"), o.Task, failureText(o.Err))
			continue
		}
		code := o.Code
		line := fmt.Sprintf("%s %s (%d bytes, entry +%#x)", okColor.Sprint("ok  "), o.Task, len(code.Code), code.Entry)
		if code.Installed {
			line += fmt.Sprintf(" at %#x", code.InstallAddress)
		}
		fmt.Fprintln(out, line+dimColor.Sprintf("  %.3f ms", toMillis(code.Timings[phasetime.PhaseCompile])))
	}
}

func failureText(err error) string {
	var cerr *compile.Error
	if errors.As(err, &cerr) {
		return cerr.Msg
	}
	return err.Error()
}

func printSummary(out io.Writer, st broker.Stats, heap *codeheap.Heap) {
	summary := fmt.Sprintf("%d compiled, %d failed", st.Succeeded, st.Failed)
	if heap != nil {
		summary += fmt.Sprintf(", %d installed (%d bytes)", st.Installed, heap.Used())
	}
	if st.Failed > 0 {
		fmt.Fprintln(out, failColor.Sprint(summary))
		return
	}
	fmt.Fprintln(out, okColor.Sprint(summary))
}

func applyColorFlag(cmd *cobra.Command) {
	value, err := cmd.Root().PersistentFlags().GetString("color")
	if err != nil {
		return
	}
	switch value {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

func dumpTraceRing(cmd *cobra.Command) {
	var ring *trace.RingTracer
	switch t := trace.FromContext(cmd.Context()).(type) {
	case *trace.RingTracer:
		ring = t
	case *trace.MultiTracer:
		ring = t.Ring()
	}
	if ring == nil {
		return
	}
	fmt.Fprintln(cmd.ErrOrStderr(), "recent trace events:")
	if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
	}
}

func hostTriple() string {
	arch := map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch64",
		"386":   "i686",
	}[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}
	switch runtime.GOOS {
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	default:
		return arch + "-unknown-" + runtime.GOOS
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
