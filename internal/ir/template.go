package ir

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

var (
	tripleLine = regexp.MustCompile(`^target\s+triple\s*=\s*"([^"]*)"`)
	layoutLine = regexp.MustCompile(`^target\s+datalayout\s*=\s*"([^"]*)"`)
	symbolDecl = regexp.MustCompile(`^(?:declare|define)\b[^@]*@("(?:[^"\\]|\\.)*"|[-a-zA-Z$._0-9]+)\s*\(`)
)

// LoadTemplate seeds m with pre-built IR. Target lines are lifted into the
// module; every other line is kept verbatim ahead of generated code and the
// symbols it declares or defines are reserved.
func (m *Module) LoadTemplate(data []byte) error {
	if m.sealed {
		return ErrSealed
	}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), " \t\r")
		trimmed := strings.TrimSpace(text)
		switch {
		case strings.HasPrefix(trimmed, "; ModuleID"), strings.HasPrefix(trimmed, "source_filename"):
			continue
		case tripleLine.MatchString(trimmed):
			triple := tripleLine.FindStringSubmatch(trimmed)[1]
			if m.Triple != "" && m.Triple != triple {
				return fmt.Errorf("template line %d: triple %q conflicts with target %q", line, triple, m.Triple)
			}
			m.Triple = triple
			continue
		case layoutLine.MatchString(trimmed):
			m.Layout = DataLayout{Spec: layoutLine.FindStringSubmatch(trimmed)[1]}
			continue
		}
		if sm := symbolDecl.FindStringSubmatch(trimmed); sm != nil {
			name := UnquoteIdent(sm[1])
			if _, ok := m.byName[name]; ok || m.templated[name] {
				return fmt.Errorf("template line %d: %w: @%s", line, ErrDuplicateSymbol, name)
			}
			m.templated[name] = true
		}
		m.prefix = append(m.prefix, text)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	for len(m.prefix) > 0 && m.prefix[len(m.prefix)-1] == "" {
		m.prefix = m.prefix[:len(m.prefix)-1]
	}
	return nil
}

// Templated reports whether name was supplied by the template.
func (m *Module) Templated(name string) bool { return m.templated[name] }
