package ir

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MangleName builds the symbol of a method: holder and name joined by a dot,
// package separators turned into dots, signature appended, NFC normalized.
func MangleName(holder, name, signature string) string {
	var sb strings.Builder
	if holder != "" {
		sb.WriteString(strings.ReplaceAll(holder, "/", "."))
		sb.WriteString(".")
	}
	sb.WriteString(name)
	sb.WriteString(signature)
	return norm.NFC.String(sb.String())
}

func plainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '$', c == '.', c == '_', c == '-':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// QuoteIdent renders name as an IR identifier, quoting when needed.
func QuoteIdent(name string) string {
	if plainIdent(name) {
		return name
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '"' || c == '\\' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&sb, "\\%02X", c)
			continue
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// UnquoteIdent reverses QuoteIdent.
func UnquoteIdent(ident string) string {
	if len(ident) < 2 || ident[0] != '"' || ident[len(ident)-1] != '"' {
		return ident
	}
	body := ident[1 : len(ident)-1]
	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+2 < len(body) {
			if v, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
				sb.WriteByte(byte(v))
				i += 2
				continue
			}
		}
		sb.WriteByte(body[i])
	}
	return sb.String()
}
