// Package jwt decodes, signs and verifies compact JSON Web Tokens.
//
// Two audiences use it. Clients holding an access token only need to know
// when it expires and whom it identifies; Decode reads the claims segment
// without the signing key and is total: empty input, missing segments,
// invalid base64url or JSON all produce an Undecodable result instead of an
// error, and DecodeExpiry reports 0 for them. Issuers (the fake backend in
// pkg/authtest) use Issuer to mint and verify HS256 tokens and Middleware to
// guard routes.
//
// # Usage
//
//	res := jwt.Decode(accessToken)
//	if claims, ok := res.Claims(); ok {
//		fmt.Println(claims.Subject, claims.ExpiresAt)
//	}
//
//	exp := jwt.DecodeExpiry(accessToken) // 0 means "treat as expired"
//
//	iss, err := jwt.NewIssuer(key, jwt.WithTTL(15*time.Minute))
//	token, claims, err := iss.Issue("user-123")
//
//	http.Handle("/me", jwt.Middleware(iss)(meHandler))
//
// # Errors
//
// Issuer methods return sentinel errors such as ErrExpiredToken or
// ErrInvalidSignature; compare them with errors.Is. Decode never returns an
// error; Result.Reason exposes ErrEmptyToken, ErrMalformedToken,
// ErrInvalidEncoding or ErrInvalidClaims for diagnostics.
package jwt
