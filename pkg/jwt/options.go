package jwt

import "time"

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithTTL sets the lifetime of issued tokens. Non-positive values are ignored.
func WithTTL(ttl time.Duration) IssuerOption {
	return func(i *Issuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithIssuerName sets the "iss" claim of issued tokens and requires it on
// verification.
func WithIssuerName(name string) IssuerOption {
	return func(i *Issuer) {
		i.name = name
	}
}

// WithLeeway tolerates clock drift when validating exp and nbf.
func WithLeeway(d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d >= 0 {
			i.leeway = d
		}
	}
}

// WithClock replaces time.Now. Tests use it to mint tokens at a fixed instant.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		if now != nil {
			i.now = now
		}
	}
}
