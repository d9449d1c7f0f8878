package session

import "context"

// Storage keys shared by every Store implementation.
const (
	AccessTokenKey  = "access_token"
	RenewalTokenKey = "refresh_token"
)

// Store persists the current token pair.
//
// Implementations must write and clear both tokens together: after Put
// returns nil a concurrent Get observes either the old pair or the new one,
// never a mix. Put rejects incomplete pairs with ErrIncompletePair. Get
// returns ErrNoSession when nothing is stored or only one of the two keys is
// present.
type Store interface {
	Get(ctx context.Context) (Pair, error)
	Put(ctx context.Context, p Pair) error
	Clear(ctx context.Context) error
}

// Authenticator talks to the authentication backend.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (Pair, error)
	Register(ctx context.Context, creds Credentials) (Pair, error)
	Refresh(ctx context.Context, renewalToken string) (Pair, error)
}
