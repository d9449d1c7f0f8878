package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authkit/pkg/authtest"
	"github.com/dmitrymomot/authkit/pkg/config"
	"github.com/dmitrymomot/authkit/pkg/jwt"
	"github.com/dmitrymomot/authkit/pkg/secrets"
	"github.com/dmitrymomot/authkit/pkg/session"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.ResetCache()

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupCLI(t *testing.T) (*authtest.Server, string, string) {
	t.Helper()
	backend, err := authtest.New(authtest.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, err)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "session.yaml")
	t.Setenv("AUTHCTL_STORE", storeFile)
	t.Setenv("AUTHCTL_STORE_PATH", path)
	t.Setenv("AUTHCTL_LOG_LEVEL", "error")
	t.Setenv("AUTH_API_URL", "")
	return backend, srv.URL, path
}

func TestCLISessionLifecycle(t *testing.T) {
	backend, url, path := setupCLI(t)

	out, err := run(t, "--api-url", url, "register", "--email", "cli@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ")

	pair, err := session.NewFileStore(path).Get(context.Background())
	require.NoError(t, err)
	sess := session.NewSession(pair)

	out, err = run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as "+sess.SubjectID)

	out, err = run(t, "--api-url", url, "get", authtest.PathMe)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "200 OK"), out)
	assert.Contains(t, out, sess.SubjectID)
	assert.Zero(t, backend.RefreshCalls())

	backend.ExpireAccess(sess.SubjectID)

	out, err = run(t, "--api-url", url, "get", "me")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "200 OK"), out)
	assert.Equal(t, 1, backend.RefreshCalls())

	renewed, err := session.NewFileStore(path).Get(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, pair, renewed, "renewed pair is persisted")

	out, err = run(t, "--api-url", url, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out\n", out)

	out, err = run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", out)
}

func TestCLILoginFailure(t *testing.T) {
	_, url, _ := setupCLI(t)

	_, err := run(t, "--api-url", url, "login", "--email", "nobody@example.com", "--password", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCLIGetRequiresSession(t *testing.T) {
	_, url, _ := setupCLI(t)

	_, err := run(t, "--api-url", url, "get", "/me")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestCLIUnknownStore(t *testing.T) {
	_, url, _ := setupCLI(t)
	t.Setenv("AUTHCTL_STORE", "etcd")

	_, err := run(t, "--api-url", url, "status")
	assert.ErrorIs(t, err, errUnknownStore)
	assert.ErrorContains(t, err, storeMongo)
}

func TestCLIStatusExpiredSession(t *testing.T) {
	_, url, path := setupCLI(t)

	iss, err := jwt.NewIssuer([]byte("k"), jwt.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	require.NoError(t, err)
	access, _, err := iss.Issue("user-1")
	require.NoError(t, err)
	require.NoError(t, session.NewFileStore(path).Put(context.Background(),
		session.Pair{AccessToken: access, RenewalToken: "r"}))

	out, err := run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in (stored session expired)\n", out)

	_, err = session.NewFileStore(path).Get(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession, "expired pair is cleared")
}

func TestCLIMongoStore(t *testing.T) {
	if os.Getenv("MONGODB_URL") == "" {
		t.Skip("MONGODB_URL not set")
	}
	_, url, _ := setupCLI(t)
	t.Setenv("AUTHCTL_STORE", storeMongo)
	t.Setenv("MONGODB_DATABASE", "authkit_test")
	t.Setenv("CREDENTIAL_KEY_PREFIX", "authctl:test:"+uuid.NewString()+":")

	_, err := run(t, "--api-url", url, "register", "--email", "mongo@example.com", "--password", "pw")
	require.NoError(t, err)

	out, err := run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ")

	_, err = run(t, "--api-url", url, "logout")
	require.NoError(t, err)

	out, err = run(t, "--api-url", url, "status")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in\n", out)
}

func TestCLIServe(t *testing.T) {
	t.Setenv("AUTHCTL_LOG_LEVEL", "error")
	config.ResetCache()

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--addr", "127.0.0.1:0", "--user", "a@example.com:pw"})
	cmd.SetOut(&out)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestCLIServeRejectsBadUser(t *testing.T) {
	t.Setenv("AUTHCTL_LOG_LEVEL", "error")
	_, err := run(t, "serve", "--addr", "127.0.0.1:0", "--user", "no-colon")
	assert.ErrorContains(t, err, "email:password")
}

func TestCLIEncryptedStore(t *testing.T) {
	_, url, path := setupCLI(t)
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	t.Setenv("AUTHCTL_STORE_KEY", base64.StdEncoding.EncodeToString(key))

	_, err = run(t, "--api-url", url, "register", "--email", "sealed@example.com", "--password", "pw")
	require.NoError(t, err)

	raw, err := session.NewFileStore(path).Get(context.Background())
	require.NoError(t, err)
	assert.Zero(t, session.NewSession(raw).ExpiresAt, "file holds ciphertext, not a JWT")

	out, err := run(t, "--api-url", url, "get", "/me")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "200 OK"), out)

	t.Setenv("AUTHCTL_STORE_KEY", "short")
	_, err = run(t, "--api-url", url, "status")
	assert.ErrorIs(t, err, secrets.ErrInvalidKey)
}
