package statemachine

import "fmt"

// Option configures a Machine during construction.
type Option func(*Machine) error

// New returns a Machine in initial with the given transitions and observers.
func New(initial State, opts ...Option) (*Machine, error) {
	if initial == nil {
		return nil, ErrInvalidState
	}

	m := &Machine{
		current:     initial,
		transitions: make(map[string]map[string]State),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New for transition tables fixed at compile time.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition lets event move the machine from one state to another.
func WithTransition(from, to State, event Event) Option {
	return func(m *Machine) error {
		return m.add(from, to, event)
	}
}

// WithObserver registers a function called after every applied transition.
func WithObserver(observer Observer) Option {
	return func(m *Machine) error {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
		return nil
	}
}
