package downloaders

import (
	"errors"
	"fmt"
)

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// validTransitions defines allowed state transitions.
// Key is the "from" state, value is list of valid "to" states.
var validTransitions = map[State][]State{
	StateIdle:     {StateRunning},
	StateRunning:  {StateFinished, StateFailed},
	StateFinished: {}, // terminal
	StateFailed:   {}, // terminal, the caller starts a new attempt
}

// CanTransitionTo returns true if transitioning from s to target is valid.
func (s State) CanTransitionTo(target State) bool {
	for _, v := range validTransitions[s] {
		if v == target {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateFailed
}

// Outcome is the terminal result of a download.
type Outcome struct {
	Success bool   `json:"success"`
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Err     error  `json:"-"`
}

func Succeeded(path string, size int64) Outcome {
	return Outcome{Success: true, Path: path, Size: size}
}

func Failed(err error) Outcome {
	return Outcome{Reason: reason(err), Err: err}
}

func reason(err error) string {
	if err == nil {
		return "unknown error"
	}

	var te *TransportError
	if errors.As(err, &te) {
		if r := te.Reason(); r != "" {
			return r
		}
	}
	return err.Error()
}

func (o Outcome) String() string {
	if o.Success {
		return fmt.Sprintf("success(%s, %d bytes)", o.Path, o.Size)
	}
	return fmt.Sprintf("failure(%s)", o.Reason)
}
