package statemachine_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/statemachine"
)

const (
	idle    = statemachine.StringState("idle")
	armed   = statemachine.StringState("armed")
	arm     = statemachine.StringEvent("arm")
	fire    = statemachine.StringEvent("fire")
	cancelE = statemachine.StringEvent("cancel")
)

func newTimer(opts ...statemachine.Option) *statemachine.Machine {
	return statemachine.MustNew(idle, append([]statemachine.Option{
		statemachine.WithTransition(idle, armed, arm),
		statemachine.WithTransition(armed, armed, arm),
		statemachine.WithTransition(armed, idle, fire),
		statemachine.WithTransition(armed, idle, cancelE),
	}, opts...)...)
}

func TestFire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newTimer()

	assert.True(t, m.Is(idle))
	assert.True(t, m.Can(arm))
	assert.False(t, m.Can(fire))

	require.NoError(t, m.Fire(ctx, arm))
	assert.Equal(t, armed, m.Current())
	require.NoError(t, m.Fire(ctx, arm), "self transition")
	require.NoError(t, m.Fire(ctx, fire))
	assert.True(t, m.Is(idle))
}

func TestFireUndefined(t *testing.T) {
	t.Parallel()
	m := newTimer()

	err := m.Fire(context.Background(), fire)
	require.Error(t, err)
	assert.True(t, statemachine.IsNoTransition(err))

	var nt *statemachine.ErrNoTransition
	require.ErrorAs(t, err, &nt)
	assert.Equal(t, "idle", nt.State)
	assert.Equal(t, "fire", nt.Event)
	assert.True(t, m.Is(idle), "state unchanged")

	assert.ErrorIs(t, m.Fire(context.Background(), nil), statemachine.ErrInvalidEvent)
	assert.False(t, m.Can(nil))
	assert.False(t, m.Is(nil))
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New(nil)
	assert.ErrorIs(t, err, statemachine.ErrInvalidState)

	_, err = statemachine.New(idle, statemachine.WithTransition(idle, nil, arm))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(idle,
		statemachine.WithTransition(idle, armed, arm),
		statemachine.WithTransition(idle, idle, arm),
	)
	var dup *statemachine.ErrDuplicateTransition
	assert.ErrorAs(t, err, &dup)

	assert.Panics(t, func() { statemachine.MustNew(nil) })
}

func TestObserver(t *testing.T) {
	t.Parallel()

	type step struct{ from, to, event string }
	var (
		mu    sync.Mutex
		steps []step
		m     *statemachine.Machine
	)
	m = newTimer(statemachine.WithObserver(func(_ context.Context, from, to statemachine.State, ev statemachine.Event) {
		assert.Equal(t, to, m.Current(), "observer sees the new state")
		mu.Lock()
		steps = append(steps, step{from.Name(), to.Name(), ev.Name()})
		mu.Unlock()
	}))

	ctx := context.Background()
	require.NoError(t, m.Fire(ctx, arm))
	require.Error(t, m.Fire(ctx, statemachine.StringEvent("bogus")))
	require.NoError(t, m.Fire(ctx, cancelE))

	assert.Equal(t, []step{
		{"idle", "armed", "arm"},
		{"armed", "idle", "cancel"},
	}, steps)
}

func TestConcurrentFire(t *testing.T) {
	t.Parallel()
	m := newTimer()
	ctx := context.Background()

	var applied atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Fire(ctx, arm) == nil {
				applied.Add(1)
			}
			_ = m.Fire(ctx, fire)
			_ = m.Current()
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 50, applied.Load(), "arm is defined from both states")
}
