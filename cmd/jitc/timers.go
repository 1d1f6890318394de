package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jitc/internal/phasetime"
)

var timersCmd = &cobra.Command{
	Use:   "timers [report.json]",
	Short: "Print phase timers",
	Long: `Print the phase-timer registry. With an argument, print a report written by
"jitc compile --timers-json"; without one, print this process's registry.`,
	Args: cobra.MaximumNArgs(1),
	RunE: timersExecution,
}

func init() {
	timersCmd.Flags().String("format", "text", "output format (text|json)")
	timersCmd.Flags().Bool("reset", false, "reset the process registry after printing")
}

func timersExecution(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	reset, err := cmd.Flags().GetBool("reset")
	if err != nil {
		return err
	}
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format %q (must be text or json)", format)
	}

	report := phasetime.Default.Snapshot()
	if len(args) == 1 {
		if report, err = readTimerReport(args[0]); err != nil {
			return err
		}
	}
	if err := renderTimers(cmd.OutOrStdout(), report, format); err != nil {
		return err
	}
	if reset {
		phasetime.Default.Reset()
	}
	return nil
}

func renderTimers(out io.Writer, report phasetime.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.Print(out)
}

func readTimerReport(path string) (phasetime.Report, error) {
	var report phasetime.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return report, err
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("%s: %w", path, err)
	}
	return report, nil
}

func writeTimerReport(path string, report phasetime.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
