package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"jitc/internal/broker"
	"jitc/internal/compile"
	"jitc/internal/host"
	"jitc/internal/ir"
)

// compilePlan is the TOML input of `jitc compile`.
type compilePlan struct {
	Target  planTarget   `toml:"target"`
	Methods []planMethod `toml:"method"`
	Stubs   []planStub   `toml:"stub"`
}

type planTarget struct {
	Triple     string `toml:"triple"`
	CPU        string `toml:"cpu"`
	Features   string `toml:"features"`
	DataLayout string `toml:"datalayout"`
	OptLevel   *int   `toml:"opt_level"`
}

type planMethod struct {
	Holder    string   `toml:"holder"`
	Name      string   `toml:"name"`
	Signature string   `toml:"signature"`
	Ret       string   `toml:"ret"`
	Params    []string `toml:"params"`
	Body      string   `toml:"body"`
	Template  string   `toml:"template"`
	Bytecode  string   `toml:"bytecode"`
	EntryBCI  *int     `toml:"entry_bci"`
	Abstract  bool     `toml:"abstract"`
	Native    bool     `toml:"native"`
}

type planStub struct {
	Name    string   `toml:"name"`
	Address int64    `toml:"address"`
	Ret     string   `toml:"ret"`
	Params  []string `toml:"params"`
}

func readPlan(path string) (*compilePlan, error) {
	var plan compilePlan
	meta, err := toml.DecodeFile(path, &plan)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if len(plan.Methods) == 0 && len(plan.Stubs) == 0 {
		return nil, fmt.Errorf("%s: plan has no [[method]] or [[stub]] entries", path)
	}
	return &plan, nil
}

// tasks converts the plan into broker tasks. Template paths are resolved
// relative to baseDir.
func (p *compilePlan) tasks(baseDir string) ([]broker.Task, error) {
	tasks := make([]broker.Task, 0, len(p.Methods)+len(p.Stubs))
	for i := range p.Methods {
		pm := &p.Methods[i]
		if strings.TrimSpace(pm.Name) == "" {
			return nil, fmt.Errorf("method #%d: missing name", i+1)
		}
		m := &host.Method{
			Holder:    pm.Holder,
			Name:      pm.Name,
			Signature: pm.Signature,
		}
		if pm.Abstract {
			m.Flags |= host.MethodAbstract
		}
		if pm.Native {
			m.Flags |= host.MethodNative
		}
		if pm.Bytecode != "" {
			code, err := hex.DecodeString(strings.ReplaceAll(pm.Bytecode, " ", ""))
			if err != nil {
				return nil, fmt.Errorf("method %s: bad bytecode: %w", m.QualifiedName(), err)
			}
			m.Bytecode = code
		}
		task := broker.Task{
			Method:     m,
			EntryBCI:   host.InvocationEntryBCI,
			Translator: bodyTranslator{typ: host.FunctionType{Ret: pm.Ret, Params: pm.Params}, body: pm.Body},
		}
		if pm.EntryBCI != nil {
			task.EntryBCI = *pm.EntryBCI
		}
		if pm.Template != "" {
			path := pm.Template
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("method %s: %w", m.QualifiedName(), err)
			}
			task.Template = data
		}
		tasks = append(tasks, task)
	}
	for i := range p.Stubs {
		ps := &p.Stubs[i]
		if strings.TrimSpace(ps.Name) == "" {
			return nil, fmt.Errorf("stub #%d: missing name", i+1)
		}
		addr, err := safecast.Conv[uint64](ps.Address)
		if err != nil {
			return nil, fmt.Errorf("stub %s: bad address: %w", ps.Name, err)
		}
		tasks = append(tasks, broker.Task{
			Name: ps.Name,
			Stub: &broker.StubSpec{
				Address: addr,
				Type:    host.FunctionType{Ret: ps.Ret, Params: ps.Params},
			},
		})
	}
	return tasks, nil
}

// bodyTranslator defines the method symbol from IR text supplied by the plan.
type bodyTranslator struct {
	typ  host.FunctionType
	body string
}

func (t bodyTranslator) Translate(ctx context.Context, s *compile.Session, mod *ir.Module, m *host.Method) error {
	blocks := parseBody(t.body)
	if len(blocks) == 0 {
		compile.ReportErrorf(ctx, "method %s has no IR body", m.QualifiedName())
		return nil
	}
	_, err := mod.AddFunction(ir.Function{
		Name:   s.Symbol(),
		Type:   t.typ,
		Blocks: blocks,
	})
	return err
}

// parseBody splits IR text into blocks. Lines ending in ':' open a block;
// instructions before the first label go to "entry".
func parseBody(body string) []ir.Block {
	var blocks []ir.Block
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if label, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsAny(label, " \t=") {
			blocks = append(blocks, ir.Block{Label: label})
			continue
		}
		if len(blocks) == 0 {
			blocks = append(blocks, ir.Block{Label: "entry"})
		}
		last := &blocks[len(blocks)-1]
		last.Instrs = append(last.Instrs, line)
	}
	return blocks
}
