// Package authapi is the HTTP client for the authentication backend.
//
// Client posts JSON to PathLogin and PathRegister ({"email","password"}) and
// PathRefresh ({"refreshToken"}) and decodes {"token","refreshToken"} into a
// session.Pair. It satisfies session.Authenticator.
//
// Non-2xx answers become *StatusError. Its Rejected method reports a
// definitive 4xx refusal, which session.Manager classifies as
// session.ErrRenewalRejected; every other failure counts as a transport
// failure.
//
//	api, err := authapi.NewClient(authapi.Config{BaseURL: "https://api.example.com"})
//	pair, err := api.Login(ctx, session.Credentials{Email: e, Password: p})
package authapi
