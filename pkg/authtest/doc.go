// Package authtest is an in-memory auth backend for tests and local runs.
//
// It serves POST /auth/login, /auth/register and /auth/refresh with the same
// JSON bodies as the production API, and a protected GET /me. Access tokens
// are HS256 JWTs, renewal tokens are single use. ExpireAccess and
// RevokeRenewals let tests force the 401 and rejected-renewal paths, and
// RefreshCalls counts how many renewals reached the server.
//
//	backend, _ := authtest.New(authtest.WithUser("a@example.com", "secret"))
//	srv := httptest.NewServer(backend)
//	defer srv.Close()
package authtest
