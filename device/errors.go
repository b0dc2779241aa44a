package device

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a runtime is used after Close.
var ErrClosed = errors.New("device: runtime closed")

// Error reports a failure from the underlying runtime during compilation
// or launch. It is fatal for the offload that triggered it and is never
// retried by the subsystem.
type Error struct {
	// Lane is the pool index of the lane the failure occurred on, or -1
	// if the failure is not attributable to a lane.
	Lane int
	// Node is the label or id of the operation that failed, if known.
	Node string
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("device error on lane %d (node %s): %v", e.Lane, e.Node, e.Err)
	}
	return fmt.Sprintf("device error on lane %d: %v", e.Lane, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
