package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"jitc/internal/trace"
)

// dump writes data to <DumpDir>/<symbol><suffix>. Failures are traced and
// never fail the compilation.
func (s *Session) dump(ctx context.Context, suffix string, data []byte) {
	if s.opts.DumpDir == "" {
		return
	}
	if err := os.MkdirAll(s.opts.DumpDir, 0o755); err != nil {
		trace.Error(ctx, trace.ScopeSession, "dump", err.Error())
		return
	}
	path := filepath.Join(s.opts.DumpDir, dumpFileName(s.symbol)+suffix)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		trace.Error(ctx, trace.ScopeSession, "dump", err.Error())
		return
	}
	trace.Point(ctx, trace.ScopeSession, "dump", path)
}

func dumpFileName(symbol string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, symbol)
}
