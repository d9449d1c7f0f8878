// Package statemachine implements small deterministic finite state machines.
//
// States and events are anything with a Name; StringState and StringEvent
// cover the common case. Each (state, event) pair maps to one target state.
// Fire applies a transition or returns *ErrNoTransition, and observers run
// after each applied transition.
//
//	const (
//		Idle  = statemachine.StringState("idle")
//		Armed = statemachine.StringState("armed")
//		Arm   = statemachine.StringEvent("arm")
//	)
//
//	m := statemachine.MustNew(Idle,
//		statemachine.WithTransition(Idle, Armed, Arm),
//		statemachine.WithObserver(func(ctx context.Context, from, to statemachine.State, ev statemachine.Event) {
//			log.Printf("%s -> %s on %s", from.Name(), to.Name(), ev.Name())
//		}),
//	)
//	_ = m.Fire(ctx, Arm)
package statemachine
