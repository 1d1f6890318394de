package trace

import (
	"fmt"
	"strings"
)

// Level controls tracing verbosity.
type Level uint8

const (
	LevelOff Level = iota
	LevelError
	LevelSession
	LevelPhase
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelOff:
		return "off"
	case LevelError:
		return "error"
	case LevelSession:
		return "session"
	case LevelPhase:
		return "phase"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a flag value to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return LevelOff, nil
	case "error":
		return LevelError, nil
	case "session":
		return LevelSession, nil
	case "phase":
		return LevelPhase, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelOff, fmt.Errorf("invalid trace level: %q (expected: off|error|session|phase|debug)", s)
	}
}

// Allows reports whether an event of kind k at scope s passes level l.
func (l Level) Allows(k Kind, s Scope) bool {
	switch l {
	case LevelOff:
		return false
	case LevelError:
		return k == KindError
	case LevelSession:
		return k == KindError || k == KindHeartbeat || s <= ScopeSession
	case LevelPhase:
		return k == KindError || k == KindHeartbeat || s <= ScopePhase
	case LevelDebug:
		return true
	}
	return false
}
