package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"jitc/internal/trace"
)

// traceFlags mirrors the --trace* persistent flags.
type traceFlags struct {
	output    string
	level     string
	mode      string
	format    string
	ringSize  int
	heartbeat time.Duration
}

func readTraceFlags(pf *pflag.FlagSet) (traceFlags, error) {
	var tf traceFlags
	var err error
	get := func(name string, dst *string) {
		if err == nil {
			*dst, err = pf.GetString(name)
		}
	}
	get("trace", &tf.output)
	get("trace-level", &tf.level)
	get("trace-mode", &tf.mode)
	get("trace-format", &tf.format)
	if err == nil {
		tf.ringSize, err = pf.GetInt("trace-ring-size")
	}
	if err == nil {
		tf.heartbeat, err = pf.GetDuration("trace-heartbeat")
	}
	if err != nil {
		return tf, fmt.Errorf("failed to read trace flags: %w", err)
	}
	return tf, nil
}

// config turns the flags into a tracer config. Naming an output without a
// level traces at phase level.
func (tf traceFlags) config() (trace.Config, error) {
	cfg := trace.Config{OutputPath: tf.output, RingSize: tf.ringSize, Heartbeat: tf.heartbeat}
	var err error
	if cfg.Level, err = trace.ParseLevel(tf.level); err != nil {
		return cfg, fmt.Errorf("invalid trace level: %w", err)
	}
	if cfg.Level == trace.LevelOff && tf.output != "" {
		cfg.Level = trace.LevelPhase
	}
	if cfg.Mode, err = trace.ParseMode(tf.mode); err != nil {
		return cfg, fmt.Errorf("invalid trace mode: %w", err)
	}
	if cfg.Format, err = trace.ParseFormat(tf.format); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupTracing attaches a tracer to the command context and returns the
// cleanup that stops the heartbeat, flushes and closes it.
func setupTracing(cmd *cobra.Command) (func(), error) {
	tf, err := readTraceFlags(cmd.Root().PersistentFlags())
	if err != nil {
		return nil, err
	}
	cfg, err := tf.config()
	if err != nil {
		return nil, err
	}
	if cfg.Level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	tracer, err := trace.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	var hb *trace.Heartbeat
	if cfg.Heartbeat > 0 {
		hb = trace.StartHeartbeat(tracer, cfg.Heartbeat)
	}
	errOut := cmd.ErrOrStderr()
	return func() {
		if hb != nil {
			hb.Stop()
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(errOut, "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(errOut, "trace: close error: %v\n", err)
		}
	}, nil
}
