package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/session"
)

func TestNewRequiresAuthenticator(t *testing.T) {
	t.Parallel()
	_, err := session.New()
	assert.ErrorIs(t, err, session.ErrNoAuthenticator)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore()
	m := newManager(t, newFakeAuth(time.Hour), session.WithStore(store))

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, session.StatusUnauthenticated, m.Status())

	sess, err := m.Login(ctx, creds)
	require.NoError(t, err)

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, session.StatusAuthenticated, m.Status())
	assert.Equal(t, session.SchedulerArmed, m.Scheduler().State())

	sub, ok := m.CurrentSubjectID()
	assert.True(t, ok)
	assert.Equal(t, "user-1", sub)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Pair(), stored)

	_, err = m.Login(ctx, session.Credentials{Email: "user-1", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, m.IsAuthenticated(), "a failed login keeps the existing session")
}

func TestRegister(t *testing.T) {
	t.Parallel()
	m := newManager(t, newFakeAuth(time.Hour))

	_, err := m.Register(context.Background(), session.Credentials{Email: "new-user", Password: "secret"})
	require.NoError(t, err)

	sub, ok := m.CurrentSubjectID()
	assert.True(t, ok)
	assert.Equal(t, "new-user", sub)
}

func TestIsAuthenticatedUsesClock(t *testing.T) {
	t.Parallel()

	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	var now atomic.Pointer[time.Time]
	at := func(d time.Duration) { ts := exp.Add(d); now.Store(&ts) }
	at(-time.Hour)

	m := newManager(t, &fixedLogin{pair: session.Pair{AccessToken: accessToken("u", exp), RenewalToken: "r"}},
		session.WithClock(func() time.Time { return *now.Load() }),
	)
	_, err := m.Login(context.Background(), creds)
	require.NoError(t, err)

	at(-6 * time.Second)
	assert.True(t, m.IsAuthenticated())
	at(-5 * time.Second)
	assert.False(t, m.IsAuthenticated())
	at(time.Second)
	assert.False(t, m.IsAuthenticated())
}

// fixedLogin returns the same pair from Login and fails Refresh.
type fixedLogin struct{ pair session.Pair }

func (f *fixedLogin) Login(context.Context, session.Credentials) (session.Pair, error) {
	return f.pair, nil
}

func (f *fixedLogin) Register(ctx context.Context, c session.Credentials) (session.Pair, error) {
	return f.Login(ctx, c)
}

func (f *fixedLogin) Refresh(context.Context, string) (session.Pair, error) {
	return session.Pair{}, errors.New("refresh disabled")
}

func TestObtainFreshSessionSingleFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	auth := newFakeAuth(time.Hour)
	metrics := session.NewMetrics(prometheus.NewRegistry())
	m := newManager(t, auth, session.WithMetrics(metrics))
	_, err := m.Login(ctx, creds)
	require.NoError(t, err)

	auth.refreshFn = func(ctx context.Context, _ string) (session.Pair, error) {
		<-release
		return pairFor("user-1", time.Hour), nil
	}

	const callers = 20
	results := make([]*session.Session, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = m.ObtainFreshSession(ctx)
		}()
	}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RenewalJoins) == callers-1
	}, time.Second, time.Millisecond)
	assert.True(t, m.RenewalInFlight())
	require.Eventually(t, func() bool { return m.Status() == session.StatusRenewing }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, auth.refreshes())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Same(t, results[0], m.Session())
	assert.Equal(t, session.StatusAuthenticated, m.Status())
	require.Eventually(t, func() bool { return !m.RenewalInFlight() }, time.Second, time.Millisecond)

	// a later trigger starts a new renewal
	auth.refreshFn = nil
	next, err := m.ObtainFreshSession(ctx)
	require.NoError(t, err)
	assert.NotSame(t, results[0], next)
	assert.Equal(t, 2, auth.refreshes())
}

func TestObtainFreshSessionWaiterCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	auth := newFakeAuth(time.Hour)
	metrics := session.NewMetrics(prometheus.NewRegistry())
	m := newManager(t, auth, session.WithMetrics(metrics))
	_, err := m.Login(context.Background(), creds)
	require.NoError(t, err)
	auth.refreshFn = func(context.Context, string) (session.Pair, error) {
		<-release
		return pairFor("user-1", time.Hour), nil
	}

	impatient, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.ObtainFreshSession(impatient)
		done <- err
	}()
	require.Eventually(t, m.RenewalInFlight, time.Second, time.Millisecond)

	patient := make(chan *session.Session, 1)
	go func() {
		sess, _ := m.ObtainFreshSession(context.Background())
		patient <- sess
	}()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.RenewalJoins) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	sess := <-patient
	require.NotNil(t, sess, "the renewal survives the first caller giving up")
	assert.Equal(t, 1, auth.refreshes())
}

func TestRenewalFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		refresh func(context.Context, string) (session.Pair, error)
		want    error
	}{
		{
			name: "rejected by backend",
			refresh: func(context.Context, string) (session.Pair, error) {
				return session.Pair{}, &rejection{status: 401}
			},
			want: session.ErrRenewalRejected,
		},
		{
			name: "backend unreachable",
			refresh: func(context.Context, string) (session.Pair, error) {
				return session.Pair{}, errors.New("dial tcp: connection refused")
			},
			want: session.ErrTransportFailure,
		},
		{
			name: "incomplete response",
			refresh: func(context.Context, string) (session.Pair, error) {
				return session.Pair{AccessToken: "only-access"}, nil
			},
			want: session.ErrTransportFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := session.NewMemoryStore()
			auth := newFakeAuth(time.Hour)

			var reasons []error
			m := newManager(t, auth,
				session.WithStore(store),
				session.WithLogoutHandler(func(_ context.Context, reason error) { reasons = append(reasons, reason) }),
			)
			_, err := m.Login(ctx, creds)
			require.NoError(t, err)

			auth.refreshFn = tt.refresh
			_, err = m.ObtainFreshSession(ctx)
			require.ErrorIs(t, err, tt.want)

			assert.False(t, m.IsAuthenticated())
			assert.Nil(t, m.Session())
			assert.Equal(t, session.StatusUnauthenticated, m.Status())
			assert.Equal(t, session.SchedulerIdle, m.Scheduler().State())
			_, err = store.Get(ctx)
			assert.ErrorIs(t, err, session.ErrNoSession)

			require.Len(t, reasons, 1)
			assert.ErrorIs(t, reasons[0], tt.want)
		})
	}
}

func TestRenewalWithoutToken(t *testing.T) {
	t.Parallel()
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth)

	_, err := m.ObtainFreshSession(context.Background())
	assert.ErrorIs(t, err, session.ErrNoRenewalToken)
	assert.Zero(t, auth.refreshes(), "no network call without a renewal token")
}

func TestLogoutIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore()

	var calls atomic.Int32
	m := newManager(t, newFakeAuth(time.Hour),
		session.WithStore(store),
		session.WithLogoutHandler(func(_ context.Context, reason error) {
			assert.NoError(t, reason)
			calls.Add(1)
		}),
	)
	_, err := m.Login(ctx, creds)
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	assert.EqualValues(t, 1, calls.Load())
	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, session.SchedulerIdle, m.Scheduler().State())
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	// logging out a manager that never logged in is fine too
	fresh := newManager(t, newFakeAuth(time.Hour))
	assert.NoError(t, fresh.Logout(ctx))
}

func TestLogoutWinsOverInflightRenewal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := session.NewMemoryStore()
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth, session.WithStore(store))
	_, err := m.Login(ctx, creds)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	auth.refreshFn = func(context.Context, string) (session.Pair, error) {
		close(started)
		<-release
		return pairFor("user-1", time.Hour), nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := m.ObtainFreshSession(ctx)
		done <- err
	}()

	<-started
	require.NoError(t, m.Logout(ctx))
	close(release)

	assert.ErrorIs(t, <-done, session.ErrLoggedOut)
	assert.Nil(t, m.Session())
	assert.Equal(t, session.StatusUnauthenticated, m.Status())
	_, err = store.Get(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession, "late renewal must not resurrect the session")
}

func TestLoginDuringRenewalKeepsNewSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth)
	_, err := m.Login(ctx, creds)
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	auth.refreshFn = func(context.Context, string) (session.Pair, error) {
		close(started)
		<-release
		return session.Pair{}, &rejection{status: 401}
	}

	done := make(chan *session.Session, 1)
	go func() {
		sess, _ := m.ObtainFreshSession(ctx)
		done <- sess
	}()

	<-started
	relogged, err := m.Login(ctx, session.Credentials{Email: "user-2", Password: "secret"})
	require.NoError(t, err)
	close(release)
	<-done

	assert.Same(t, relogged, m.Session(), "a stale renewal failure must not end the newer session")
	assert.True(t, m.IsAuthenticated())
}

func TestScheduledRenewal(t *testing.T) {
	t.Parallel()

	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth, session.WithConfig(session.Config{
		RenewLead:     time.Hour,
		MinRenewDelay: 20 * time.Millisecond,
		ClockSkew:     5 * time.Second,
	}))

	first, err := m.Login(context.Background(), creds)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return auth.refreshes() >= 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.Session() != first }, time.Second, 5*time.Millisecond)
	assert.True(t, m.IsAuthenticated())
}

func TestScheduledRenewalFailureLogsOut(t *testing.T) {
	t.Parallel()

	auth := newFakeAuth(time.Hour)
	auth.refreshFn = func(context.Context, string) (session.Pair, error) {
		return session.Pair{}, &rejection{status: 403}
	}
	loggedOut := make(chan error, 1)
	m := newManager(t, auth,
		session.WithConfig(session.Config{RenewLead: time.Hour, MinRenewDelay: 10 * time.Millisecond}),
		session.WithLogoutHandler(func(_ context.Context, reason error) { loggedOut <- reason }),
	)
	_, err := m.Login(context.Background(), creds)
	require.NoError(t, err)

	select {
	case reason := <-loggedOut:
		assert.ErrorIs(t, reason, session.ErrRenewalRejected)
	case <-time.After(time.Second):
		t.Fatal("scheduled renewal failure did not log out")
	}
	assert.False(t, m.IsAuthenticated())
}

func TestRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid stored pair", func(t *testing.T) {
		store := session.NewMemoryStore()
		p := pairFor("user-9", time.Hour)
		require.NoError(t, store.Put(ctx, p))

		m := newManager(t, newFakeAuth(time.Hour), session.WithStore(store))
		sess, err := m.Restore(ctx)
		require.NoError(t, err)
		assert.Equal(t, p, sess.Pair())
		assert.True(t, m.IsAuthenticated())
		assert.Equal(t, session.SchedulerArmed, m.Scheduler().State())
	})

	t.Run("expired stored pair is cleared", func(t *testing.T) {
		store := session.NewMemoryStore()
		require.NoError(t, store.Put(ctx, pairFor("user-9", -time.Minute)))

		auth := newFakeAuth(time.Hour)
		m := newManager(t, auth, session.WithStore(store))
		_, err := m.Restore(ctx)
		assert.ErrorIs(t, err, session.ErrSessionExpired)
		assert.False(t, m.IsAuthenticated())
		assert.Zero(t, auth.refreshes())

		_, err = store.Get(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})

	t.Run("empty store", func(t *testing.T) {
		m := newManager(t, newFakeAuth(time.Hour))
		_, err := m.Restore(ctx)
		assert.ErrorIs(t, err, session.ErrNoSession)
	})
}

func TestEvents(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newManager(t, newFakeAuth(time.Hour))
	sub := m.Subscribe(ctx)
	events := sub.Receive(ctx)

	_, err := m.Login(ctx, creds)
	require.NoError(t, err)
	_, err = m.ObtainFreshSession(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	var kinds []session.EventKind
	for range 3 {
		select {
		case msg := <-events:
			kinds = append(kinds, msg.Data.Kind)
			assert.Equal(t, "user-1", msg.Data.SubjectID)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
	assert.Equal(t, []session.EventKind{session.EventAuthenticated, session.EventRenewed, session.EventLoggedOut}, kinds)

	select {
	case msg := <-events:
		t.Fatalf("unexpected event %q", msg.Data.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	reg := prometheus.NewRegistry()
	metrics := session.NewMetrics(reg)
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth, session.WithMetrics(metrics))

	_, err := m.Login(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Authenticated))

	_, err = m.ObtainFreshSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renewals.WithLabelValues("success")))

	auth.refreshFn = func(context.Context, string) (session.Pair, error) {
		return session.Pair{}, &rejection{status: 401}
	}
	_, err = m.ObtainFreshSession(ctx)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Renewals.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Logouts.WithLabelValues("rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.Authenticated))
}

func TestTokenSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth)

	_, err := m.TokenSource(ctx).Token()
	assert.ErrorIs(t, err, session.ErrNoRenewalToken)

	sess, err := m.Login(ctx, creds)
	require.NoError(t, err)

	tok, err := m.TokenSource(ctx).Token()
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Valid())
	assert.Zero(t, auth.refreshes())
}

func TestRenewalAfterFailedAttemptStartsAnew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	auth := newFakeAuth(time.Hour)
	m := newManager(t, auth)

	var failing atomic.Bool
	auth.refreshFn = func(_ context.Context, token string) (session.Pair, error) {
		if failing.Load() {
			return session.Pair{}, errors.New("connection reset")
		}
		return auth.issue("user-1"), nil
	}

	for i := range 200 {
		_, err := m.Login(ctx, creds)
		require.NoError(t, err)

		failing.Store(true)
		_, err = m.ObtainFreshSession(ctx)
		require.ErrorIs(t, err, session.ErrTransportFailure)
		require.False(t, m.IsAuthenticated())

		_, err = m.Login(ctx, creds)
		require.NoError(t, err)
		before := auth.refreshes()

		failing.Store(false)
		sess, err := m.ObtainFreshSession(ctx)
		require.NoError(t, err, "iteration %d got the previous attempt's result", i)
		require.Equal(t, before+1, auth.refreshes())
		require.Equal(t, m.Session(), sess)
	}
}

func TestEventsFollowSessionChanges(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := session.NewMetrics(prometheus.NewRegistry())
	m := newManager(t, newFakeAuth(time.Hour), session.WithMetrics(metrics))
	events := m.Subscribe(ctx).Receive(ctx)

	drain := func() []session.EventKind {
		var kinds []session.EventKind
		for {
			select {
			case msg := <-events:
				kinds = append(kinds, msg.Data.Kind)
			default:
				return kinds
			}
		}
	}

	for i := range 300 {
		_, err := m.Login(ctx, creds)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = m.ObtainFreshSession(ctx)
		}()
		go func() {
			defer wg.Done()
			_ = m.Logout(ctx)
		}()
		wg.Wait()

		kinds := drain()
		require.Nil(t, m.Session())
		require.NotEmpty(t, kinds)
		require.Equal(t, session.EventLoggedOut, kinds[len(kinds)-1], "iteration %d: %v", i, kinds)
		require.Equal(t, 0.0, testutil.ToFloat64(metrics.Authenticated))
	}
}

type cancelAwareStore struct {
	*session.MemoryStore
}

func (s cancelAwareStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.Clear(ctx)
}

func TestLogoutWithCancelledContextClearsStore(t *testing.T) {
	t.Parallel()
	store := cancelAwareStore{session.NewMemoryStore()}
	m := newManager(t, newFakeAuth(time.Hour), session.WithStore(store))

	_, err := m.Login(context.Background(), creds)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, m.Logout(ctx))

	_, err = store.Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = m.Restore(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}
