package authtest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/pkg/authapi"
	"github.com/dmitrymomot/authkit/pkg/authtest"
	"github.com/dmitrymomot/authkit/pkg/requestid"
	"github.com/dmitrymomot/authkit/pkg/session"
)

var alice = session.Credentials{Email: "alice@example.com", Password: "correct horse"}

func newBackend(t *testing.T, opts ...authtest.Option) (*authtest.Server, *httptest.Server, *authapi.Client) {
	t.Helper()
	backend, err := authtest.New(append([]authtest.Option{
		authtest.WithBcryptCost(bcrypt.MinCost),
		authtest.WithUser(alice.Email, alice.Password),
	}, opts...)...)
	require.NoError(t, err)

	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := authapi.NewClient(authapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return backend, srv, client
}

func newManager(t *testing.T, srv *httptest.Server, client *authapi.Client, opts ...session.Option) *session.Manager {
	t.Helper()
	m, err := session.New(append([]session.Option{
		session.WithAuthenticator(client),
		session.WithAPIBaseURLs(srv.URL + "/"),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

type me struct {
	Subject   string `json:"sub"`
	RequestID string `json:"requestId"`
}

func getMe(t *testing.T, m *session.Manager, srv *httptest.Server) (int, me) {
	t.Helper()
	resp, err := m.HTTPClient().Get(srv.URL + authtest.PathMe)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body me
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, resp.Header.Get(requestid.Header), body.RequestID)
	}
	return resp.StatusCode, body
}

func TestAuthEndpoints(t *testing.T) {
	t.Parallel()
	_, _, client := newBackend(t)
	ctx := context.Background()

	t.Run("login", func(t *testing.T) {
		pair, err := client.Login(ctx, alice)
		require.NoError(t, err)
		sess := session.NewSession(pair)
		assert.NotEmpty(t, sess.SubjectID)
		assert.Greater(t, sess.ExpiresAt, time.Now().Unix())
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		_, err := client.Login(ctx, session.Credentials{Email: alice.Email, Password: "nope"})
		var se *authapi.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.True(t, se.Rejected())
	})

	t.Run("register then duplicate", func(t *testing.T) {
		creds := session.Credentials{Email: "bob@example.com", Password: "pw"}
		_, err := client.Register(ctx, creds)
		require.NoError(t, err)

		_, err = client.Register(ctx, creds)
		var se *authapi.StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusConflict, se.StatusCode)
	})

	t.Run("refresh rotates the renewal token", func(t *testing.T) {
		pair, err := client.Login(ctx, alice)
		require.NoError(t, err)

		next, err := client.Refresh(ctx, pair.RenewalToken)
		require.NoError(t, err)
		assert.NotEqual(t, pair.RenewalToken, next.RenewalToken)

		_, err = client.Refresh(ctx, pair.RenewalToken)
		var se *authapi.StatusError
		require.ErrorAs(t, err, &se)
		assert.True(t, se.Rejected(), "used renewal tokens are rejected")
	})
}

func TestProtectedEndpointRequiresToken(t *testing.T) {
	t.Parallel()
	_, srv, _ := newBackend(t)

	resp, err := http.Get(srv.URL + authtest.PathMe)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestManagerRenewsExpiredAccess(t *testing.T) {
	t.Parallel()
	backend, srv, client := newBackend(t)
	m := newManager(t, srv, client)

	sess, err := m.Login(context.Background(), alice)
	require.NoError(t, err)

	code, body := getMe(t, m, srv)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, sess.SubjectID, body.Subject)
	assert.Zero(t, backend.RefreshCalls())

	backend.ExpireAccess(sess.SubjectID)

	code, body = getMe(t, m, srv)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, sess.SubjectID, body.Subject)
	assert.Equal(t, 1, backend.RefreshCalls())
	assert.NotEqual(t, sess.AccessToken, m.Session().AccessToken)
	assert.True(t, m.IsAuthenticated())
}

func TestManagerSharesRenewalAcrossRequests(t *testing.T) {
	t.Parallel()
	backend, srv, client := newBackend(t, authtest.WithRefreshDelay(100*time.Millisecond))
	m := newManager(t, srv, client)

	sess, err := m.Login(context.Background(), alice)
	require.NoError(t, err)
	backend.ExpireAccess(sess.SubjectID)

	const n = 5
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := m.HTTPClient().Get(srv.URL + authtest.PathMe)
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, backend.RefreshCalls())
}

func TestManagerLogsOutWhenRenewalRevoked(t *testing.T) {
	t.Parallel()
	backend, srv, client := newBackend(t)

	reasons := make(chan error, 1)
	m := newManager(t, srv, client, session.WithLogoutHandler(func(_ context.Context, reason error) {
		reasons <- reason
	}))

	sess, err := m.Login(context.Background(), alice)
	require.NoError(t, err)
	backend.RevokeRenewals(sess.SubjectID)
	backend.ExpireAccess(sess.SubjectID)

	code, _ := getMe(t, m, srv)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, m.IsAuthenticated())
	assert.ErrorIs(t, <-reasons, session.ErrRenewalRejected)
}
