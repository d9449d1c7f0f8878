package session_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/jwt"
	"github.com/dmitrymomot/authkit/pkg/session"
)

var signer, _ = jwt.NewIssuer([]byte("session-test-secret"))

var serial atomic.Int64

// accessToken mints a signed token for sub expiring at exp. Every call
// yields a distinct token.
func accessToken(sub string, exp time.Time) string {
	tok, err := signer.Sign(jwt.StandardClaims{
		ID:        fmt.Sprint(serial.Add(1)),
		Subject:   sub,
		ExpiresAt: exp.Unix(),
	})
	if err != nil {
		panic(err)
	}
	return tok
}

func pairFor(sub string, ttl time.Duration) session.Pair {
	return session.Pair{
		AccessToken:  accessToken(sub, time.Now().Add(ttl)),
		RenewalToken: fmt.Sprintf("renew-%d", serial.Add(1)),
	}
}

type rejection struct{ status int }

func (e *rejection) Error() string  { return fmt.Sprintf("status %d", e.status) }
func (e *rejection) Rejected() bool { return true }

// fakeAuth is an in-memory Authenticator. Refresh issues a new pair for the
// same subject unless refreshFn overrides it.
type fakeAuth struct {
	ttl       time.Duration
	refreshFn func(ctx context.Context, token string) (session.Pair, error)
	onIssue   func(session.Pair)

	mu       sync.Mutex
	refreshN int
	issued   []session.Pair
}

func newFakeAuth(ttl time.Duration) *fakeAuth {
	return &fakeAuth{ttl: ttl}
}

func (f *fakeAuth) issue(sub string) session.Pair {
	p := pairFor(sub, f.ttl)
	f.mu.Lock()
	f.issued = append(f.issued, p)
	hook := f.onIssue
	f.mu.Unlock()
	if hook != nil {
		hook(p)
	}
	return p
}

func (f *fakeAuth) Login(_ context.Context, creds session.Credentials) (session.Pair, error) {
	if creds.Password != "secret" {
		return session.Pair{}, &rejection{status: 401}
	}
	return f.issue(creds.Email), nil
}

func (f *fakeAuth) Register(ctx context.Context, creds session.Credentials) (session.Pair, error) {
	return f.Login(ctx, creds)
}

func (f *fakeAuth) Refresh(ctx context.Context, token string) (session.Pair, error) {
	f.mu.Lock()
	f.refreshN++
	fn := f.refreshFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, token)
	}
	if token == "" {
		return session.Pair{}, errors.New("empty renewal token")
	}
	return f.issue("user-1"), nil
}

func (f *fakeAuth) refreshes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshN
}

func newManager(t *testing.T, auth session.Authenticator, opts ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.New(append([]session.Option{session.WithAuthenticator(auth)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

var creds = session.Credentials{Email: "user-1", Password: "secret"}
