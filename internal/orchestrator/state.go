package orchestrator

import "fmt"

// State is a step of the startup sequence.
type State int

const (
	Idle State = iota
	Booting
	Mounting
	Installing
	ServingStarting
	ShellStarting
	Running
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Booting:
		return "booting"
	case Mounting:
		return "mounting"
	case Installing:
		return "installing"
	case ServingStarting:
		return "serving_starting"
	case ShellStarting:
		return "shell_starting"
	case Running:
		return "running"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StageError is a fatal failure, tagged with the state it happened in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return e.State.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }
