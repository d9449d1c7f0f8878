// Package session keeps a client authenticated against a token-issuing API.
//
// A login or registration yields a Pair: a short-lived access token and a
// long-lived renewal token. Manager persists the pair in a Store, renews the
// access token shortly before it expires and decorates outgoing HTTP requests
// with it. Concurrent renewal triggers (the scheduler, any number of requests
// answered with 401, TokenSource callers) share one network renewal and all
// observe its result. A renewal that fails for any reason ends the session.
//
// # Components
//
//   - Store persists the pair atomically. MemoryStore and FileStore live here;
//     pkg/redis and pkg/pg provide shared backends.
//   - Scheduler arms a single timer at max(timeLeft-RenewLead, MinRenewDelay).
//   - Manager.ObtainFreshSession is the single-flight renewal entry point.
//   - Transport is an http.RoundTripper adding "Authorization: Bearer" to
//     API requests and retrying a 401 once after renewal.
//   - Subscribe delivers authenticated, renewed and logged_out events.
//
// # Usage
//
//	api := authapi.NewClient(authapi.Config{BaseURL: "https://api.example.com"})
//	m, err := session.New(
//		session.WithAuthenticator(api),
//		session.WithStore(session.NewFileStore(path)),
//		session.WithAPIBaseURLs("https://api.example.com"),
//		session.WithLogoutHandler(func(ctx context.Context, reason error) {
//			// show the login screen
//		}),
//	)
//	if err != nil {
//		return err
//	}
//	defer m.Close()
//
//	if _, err := m.Restore(ctx); err != nil {
//		_, err = m.Login(ctx, session.Credentials{Email: email, Password: pw})
//	}
//
//	resp, err := m.HTTPClient().Get("https://api.example.com/me")
//
// # Errors
//
// Renewal failures wrap one of ErrNoRenewalToken, ErrRenewalRejected (the
// backend refused the renewal token) or ErrTransportFailure (the backend
// could not be reached or answered nonsense), joined with the cause. A
// renewal overtaken by Logout resolves with ErrLoggedOut. Requests whose
// retry could not be authorized return the original 401 response.
package session
