package trace

import "time"

// Kind is the type of an event.
type Kind uint8

const (
	// KindSpanBegin opens a span.
	KindSpanBegin Kind = iota + 1
	// KindSpanEnd closes a span.
	KindSpanEnd
	// KindPoint is an instant event.
	KindPoint
	// KindError is an instant event describing a failure.
	KindError
	// KindHeartbeat is a periodic liveness signal.
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindError:
		return "error"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Smaller values are coarser.
type Scope uint8

const (
	// ScopeDriver covers CLI and broker level work.
	ScopeDriver Scope = iota + 1
	// ScopeSession covers one compilation session.
	ScopeSession
	// ScopePhase covers a pipeline phase inside a session.
	ScopePhase
	// ScopeBackend covers external tool invocations.
	ScopeBackend
)

func (s Scope) String() string {
	switch s {
	case ScopeDriver:
		return "driver"
	case ScopeSession:
		return "session"
	case ScopePhase:
		return "phase"
	case ScopeBackend:
		return "backend"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	Name     string
	Detail   string
	Elapsed  time.Duration // set on KindSpanEnd
	Extra    map[string]string
}
