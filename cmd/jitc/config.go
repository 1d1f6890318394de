package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

const configFileName = "jitc.toml"

// fileConfig is the optional jitc.toml. Command-line flags win over it.
type fileConfig struct {
	Compile compileConfig `toml:"compile"`
	Timing  timingConfig  `toml:"timing"`
	Tools   toolsConfig   `toml:"tools"`
}

type compileConfig struct {
	Jobs     int    `toml:"jobs"`
	OptLevel *int   `toml:"opt_level"`
	Triple   string `toml:"triple"`
	CPU      string `toml:"cpu"`
	DumpDir  string `toml:"dump_dir"`
	Cache    bool   `toml:"cache"`
}

type timingConfig struct {
	CITime        bool `toml:"ci_time"`
	CITimeEach    bool `toml:"ci_time_each"`
	CITimeVerbose bool `toml:"ci_time_verbose"`
}

type toolsConfig struct {
	Opt   string `toml:"opt"`
	LLC   string `toml:"llc"`
	Clang string `toml:"clang"`
}

func findConfig(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, configFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

func decodeConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return fileConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if cfg.Compile.Jobs < 0 {
		return fileConfig{}, fmt.Errorf("%s: [compile].jobs must not be negative", path)
	}
	if lvl := cfg.Compile.OptLevel; lvl != nil && (*lvl < 0 || *lvl > 3) {
		return fileConfig{}, fmt.Errorf("%s: [compile].opt_level must be 0..3", path)
	}
	return cfg, nil
}

// loadConfig reads --config or the nearest jitc.toml. A missing file yields
// the zero config.
func loadConfig(cmd *cobra.Command) (fileConfig, error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return fileConfig{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path == "" {
		found, ok, err := findConfig(".")
		if err != nil || !ok {
			return fileConfig{}, err
		}
		path = found
	}
	return decodeConfig(path)
}
