package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidState      = errors.New("statemachine: initial state cannot be nil")
	ErrInvalidTransition = errors.New("statemachine: from, to, or event cannot be nil")
	ErrInvalidEvent      = errors.New("statemachine: event cannot be nil")
)

// ErrNoTransition is returned by Fire when the event is not defined for the
// current state.
type ErrNoTransition struct {
	State string
	Event string
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("statemachine: no transition from %q on %q", e.State, e.Event)
}

// ErrDuplicateTransition is returned by New when a (state, event) pair is
// defined twice.
type ErrDuplicateTransition struct {
	State string
	Event string
}

func (e *ErrDuplicateTransition) Error() string {
	return fmt.Sprintf("statemachine: transition from %q on %q already defined", e.State, e.Event)
}

// IsNoTransition reports whether err is an ErrNoTransition.
func IsNoTransition(err error) bool {
	var e *ErrNoTransition
	return errors.As(err, &e)
}
