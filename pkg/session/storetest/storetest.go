// Package storetest checks session.Store implementations against the
// behaviour Manager relies on.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/session"
)

// Run exercises a store created fresh by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) session.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
		assert.NoError(t, s.Clear(ctx))
	})

	t.Run("put then get", func(t *testing.T) {
		s := newStore(t)
		p := session.Pair{AccessToken: "access-1", RenewalToken: "renew-1"}
		require.NoError(t, s.Put(ctx, p))

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("put replaces both tokens", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, session.Pair{AccessToken: "a1", RenewalToken: "r1"}))
		require.NoError(t, s.Put(ctx, session.Pair{AccessToken: "a2", RenewalToken: "r2"}))

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Pair{AccessToken: "a2", RenewalToken: "r2"}, got)
	})

	t.Run("incomplete pairs are rejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, session.Pair{AccessToken: "a1", RenewalToken: "r1"}))

		assert.ErrorIs(t, s.Put(ctx, session.Pair{AccessToken: "a2"}), session.ErrIncompletePair)
		assert.ErrorIs(t, s.Put(ctx, session.Pair{RenewalToken: "r2"}), session.ErrIncompletePair)

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, session.Pair{AccessToken: "a1", RenewalToken: "r1"}, got, "previous pair must survive")
	})

	t.Run("clear removes both tokens", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, session.Pair{AccessToken: "a", RenewalToken: "r"}))
		require.NoError(t, s.Clear(ctx))
		require.NoError(t, s.Clear(ctx))

		_, err := s.Get(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("concurrent writers never mix pairs", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range 10 {
					tag := fmt.Sprintf("%d-%d", i, j)
					_ = s.Put(ctx, session.Pair{AccessToken: "a" + tag, RenewalToken: "r" + tag})
				}
			}()
		}

		for range 50 {
			got, err := s.Get(ctx)
			if err != nil {
				continue
			}
			assert.Equal(t, got.AccessToken[1:], got.RenewalToken[1:])
		}
		wg.Wait()

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, got.AccessToken[1:], got.RenewalToken[1:])
	})
}
