// Package llvmtool is a backend that drives the LLVM command line tools:
// opt for optimization and llc (or clang) for code generation.
package llvmtool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"jitc/internal/backend"
	"jitc/internal/ir"
	"jitc/internal/trace"
)

// Config selects the tools. Empty paths are looked up in PATH.
type Config struct {
	Opt           string
	LLC           string
	Clang         string
	WorkDir       string // parent of temporary directories; "" means os.TempDir
	PrintCommands bool
	Stdout        io.Writer // destination of printed commands; nil means stdout
}

// Backend runs opt and llc as subprocesses.
type Backend struct {
	cfg Config
}

var _ backend.Backend = (*Backend)(nil)

// New resolves the tools named in cfg.
func New(cfg Config) (*Backend, error) {
	var err error
	if cfg.Opt, err = resolveTool(cfg.Opt, "opt"); err != nil {
		return nil, err
	}
	llc, llcErr := resolveTool(cfg.LLC, "llc")
	clang, clangErr := resolveTool(cfg.Clang, "clang")
	if llcErr != nil && clangErr != nil {
		return nil, fmt.Errorf("no code generator found: %w", errors.Join(llcErr, clangErr))
	}
	cfg.LLC, cfg.Clang = llc, clang
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	return &Backend{cfg: cfg}, nil
}

func resolveTool(path, name string) (string, error) {
	if path == "" {
		path = name
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%s not found; install with: sudo apt-get install -y llvm clang", name)
	}
	return resolved, nil
}

// Name implements backend.Backend.
func (b *Backend) Name() string { return "llvm" }

// Optimize runs opt over the module text and stores the result.
func (b *Backend) Optimize(ctx context.Context, mod *ir.Module, t backend.Target) error {
	if !mod.Sealed() {
		return fmt.Errorf("module %s must be sealed before optimization", mod.Name)
	}
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "jitc-opt-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.ll")
	out := filepath.Join(dir, "out.ll")
	if err := os.WriteFile(in, []byte(mod.Text()), 0o600); err != nil {
		return fmt.Errorf("failed to write IR: %w", err)
	}
	if err := b.run(ctx, b.cfg.Opt, optArgs(t, in, out)...); err != nil {
		return err
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return fmt.Errorf("failed to read optimized IR: %w", err)
	}
	return mod.SetOptimized(string(data))
}

// Generate compiles the module text to an object file and transcribes it.
func (b *Backend) Generate(ctx context.Context, mod *ir.Module, t backend.Target) (*backend.Object, error) {
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "jitc-gen-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.ll")
	obj := filepath.Join(dir, "out.o")
	if err := os.WriteFile(in, []byte(mod.Text()), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write IR: %w", err)
	}
	if err := b.compileObject(ctx, t, in, obj); err != nil {
		return nil, err
	}
	return ReadObject(obj)
}

func (b *Backend) compileObject(ctx context.Context, t backend.Target, in, obj string) error {
	var llcErr error
	if b.cfg.LLC != "" {
		if llcErr = b.run(ctx, b.cfg.LLC, llcArgs(t, in, obj)...); llcErr == nil {
			return nil
		}
	}
	if b.cfg.Clang == "" {
		return llcErr
	}
	// fall back to clang
	if err := b.run(ctx, b.cfg.Clang, clangArgs(t, in, obj)...); err != nil {
		if llcErr != nil {
			return fmt.Errorf("llc and clang failed: %w", errors.Join(llcErr, err))
		}
		return err
	}
	return nil
}

func optArgs(t backend.Target, in, out string) []string {
	args := []string{fmt.Sprintf("-O%d", t.OptLevel), "-S"}
	if t.Triple != "" {
		args = append(args, "-mtriple="+t.Triple)
	}
	if t.CPU != "" {
		args = append(args, "-mcpu="+t.CPU)
	}
	return append(args, in, "-o", out)
}

func llcArgs(t backend.Target, in, out string) []string {
	args := []string{"-filetype=obj", fmt.Sprintf("-O%d", t.OptLevel), "-relocation-model=pic"}
	if t.Triple != "" {
		args = append(args, "-mtriple="+t.Triple)
	}
	if t.CPU != "" {
		args = append(args, "-mcpu="+t.CPU)
	}
	if t.Features != "" {
		args = append(args, "-mattr="+t.Features)
	}
	return append(args, in, "-o", out)
}

func clangArgs(t backend.Target, in, out string) []string {
	args := []string{"-c", "-x", "ir", fmt.Sprintf("-O%d", t.OptLevel), "-fPIC"}
	if t.Triple != "" {
		args = append(args, "--target="+t.Triple)
	}
	if t.CPU != "" {
		args = append(args, "-mcpu="+t.CPU)
	}
	return append(args, in, "-o", out)
}

func (b *Backend) run(ctx context.Context, name string, args ...string) error {
	line := name + " " + strings.Join(args, " ")
	trace.Point(ctx, trace.ScopeBackend, filepath.Base(name), line)
	if b.cfg.PrintCommands {
		if _, err := fmt.Fprintln(b.cfg.Stdout, line); err != nil {
			return fmt.Errorf("failed to print command: %w", err)
		}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", filepath.Base(name), ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		return fmt.Errorf("%s: %s", filepath.Base(name), msg)
	}
	return nil
}
