package statemachine

import "context"

// State is a named machine state.
type State interface {
	Name() string
}

// Event is a named trigger.
type Event interface {
	Name() string
}

// Observer is notified after a transition has been applied. It runs outside
// the machine's lock, so it may call Current.
type Observer func(ctx context.Context, from, to State, event Event)

// StateMachine is a finite state machine with at most one target state per
// (state, event) pair.
type StateMachine interface {
	Current() State
	Is(state State) bool
	Can(event Event) bool
	Fire(ctx context.Context, event Event) error
}

// StringState is a State named by its value.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is an Event named by its value.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }
