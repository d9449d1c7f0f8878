package statemachine

import (
	"context"
	"sync"
)

// Machine is the in-memory StateMachine. Transitions are indexed by state
// name, then event name. Safe for concurrent use.
type Machine struct {
	mu          sync.RWMutex
	current     State
	transitions map[string]map[string]State
	observers   []Observer
}

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Is compares by name.
func (m *Machine) Is(state State) bool {
	if state == nil {
		return false
	}
	return m.Current().Name() == state.Name()
}

// Can reports whether event is defined for the current state.
func (m *Machine) Can(event Event) bool {
	if event == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions[m.current.Name()][event.Name()]
	return ok
}

// Fire moves to the target state for event, or returns ErrNoTransition and
// stays put.
func (m *Machine) Fire(ctx context.Context, event Event) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	from := m.current
	to, ok := m.transitions[from.Name()][event.Name()]
	if !ok {
		m.mu.Unlock()
		return &ErrNoTransition{State: from.Name(), Event: event.Name()}
	}
	m.current = to
	observers := m.observers
	m.mu.Unlock()

	for _, observe := range observers {
		observe(ctx, from, to, event)
	}
	return nil
}

func (m *Machine) add(from, to State, event Event) error {
	if from == nil || to == nil || event == nil {
		return ErrInvalidTransition
	}
	byEvent, ok := m.transitions[from.Name()]
	if !ok {
		byEvent = make(map[string]State)
		m.transitions[from.Name()] = byEvent
	}
	if _, dup := byEvent[event.Name()]; dup {
		return &ErrDuplicateTransition{State: from.Name(), Event: event.Name()}
	}
	byEvent[event.Name()] = to
	return nil
}
