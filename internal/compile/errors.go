package compile

import "errors"

var (
	// ErrNoSession is returned by Current outside of an active session.
	ErrNoSession = errors.New("no active compilation session")
	// ErrSessionActive is returned when a session is created on an
	// environment that already has one.
	ErrSessionActive = errors.New("a compilation session is already active on this environment")
	// ErrCompilationFailed is matched by every *Error.
	ErrCompilationFailed = errors.New("compilation failed")
)

// Error carries the first reported failure of a session.
type Error struct {
	Name string // method or stub being compiled
	Msg  string
}

func (e *Error) Error() string {
	if e.Name == "" {
		return "compilation failed: " + e.Msg
	}
	return "compilation of " + e.Name + " failed: " + e.Msg
}

// Is makes errors.Is(err, ErrCompilationFailed) true.
func (e *Error) Is(target error) bool { return target == ErrCompilationFailed }
