package secrets

import (
	"context"
	"errors"

	"github.com/dmitrymomot/authkit/pkg/session"
)

// Store seals both tokens before handing the pair to the wrapped store.
// A pair that no longer decrypts (rotated key, tampering) reads as
// session.ErrNoSession, so the user simply logs in again.
type Store struct {
	inner  session.Store
	sealer *Sealer
}

func NewStore(inner session.Store, sealer *Sealer) *Store {
	return &Store{inner: inner, sealer: sealer}
}

func (s *Store) Get(ctx context.Context) (session.Pair, error) {
	sealed, err := s.inner.Get(ctx)
	if err != nil {
		return session.Pair{}, err
	}

	access, err := s.sealer.Open(sealed.AccessToken)
	if err != nil {
		return session.Pair{}, errors.Join(session.ErrNoSession, err)
	}
	renewal, err := s.sealer.Open(sealed.RenewalToken)
	if err != nil {
		return session.Pair{}, errors.Join(session.ErrNoSession, err)
	}
	return session.Pair{AccessToken: access, RenewalToken: renewal}, nil
}

func (s *Store) Put(ctx context.Context, p session.Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	access, err := s.sealer.Seal(p.AccessToken)
	if err != nil {
		return err
	}
	renewal, err := s.sealer.Seal(p.RenewalToken)
	if err != nil {
		return err
	}
	return s.inner.Put(ctx, session.Pair{AccessToken: access, RenewalToken: renewal})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}
