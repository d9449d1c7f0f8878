package session

import (
	"time"

	"github.com/dmitrymomot/authkit/pkg/jwt"
)

// Credentials identify an account for Login and Register.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Pair is the access token and renewal token issued together by the backend.
// A pair is persisted and replaced as a unit.
type Pair struct {
	AccessToken  string `yaml:"access_token" json:"token"`
	RenewalToken string `yaml:"refresh_token" json:"refreshToken"`
}

// IsZero reports whether neither token is set.
func (p Pair) IsZero() bool {
	return p.AccessToken == "" && p.RenewalToken == ""
}

// Validate returns ErrIncompletePair unless both tokens are present.
func (p Pair) Validate() error {
	if p.AccessToken == "" || p.RenewalToken == "" {
		return ErrIncompletePair
	}
	return nil
}

// Session is a token pair together with the claims read from the access
// token. Sessions are immutable; renewal produces a new value.
type Session struct {
	AccessToken  string
	RenewalToken string
	// ExpiresAt is the access token's exp claim in seconds since epoch.
	// Zero means the token could not be decoded and counts as expired.
	ExpiresAt int64
	// SubjectID is the sub claim, empty when absent.
	SubjectID string
}

// NewSession decodes the access token of p without verifying its signature.
func NewSession(p Pair) *Session {
	res := jwt.Decode(p.AccessToken)
	return &Session{
		AccessToken:  p.AccessToken,
		RenewalToken: p.RenewalToken,
		ExpiresAt:    res.ExpiresAt(),
		SubjectID:    res.Subject(),
	}
}

// Pair returns the tokens of s.
func (s *Session) Pair() Pair {
	if s == nil {
		return Pair{}
	}
	return Pair{AccessToken: s.AccessToken, RenewalToken: s.RenewalToken}
}

// Expiry returns ExpiresAt as a time, or the zero time when unknown.
func (s *Session) Expiry() time.Time {
	if s == nil || s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// IsAuthenticatedAt reports whether the access token is still usable at now,
// treating it as expired skew before its exp claim. A nil session, an empty
// token or an undecodable one is never authenticated.
func (s *Session) IsAuthenticatedAt(now time.Time, skew time.Duration) bool {
	if s == nil || s.AccessToken == "" || s.ExpiresAt == 0 {
		return false
	}
	return now.Unix() < s.ExpiresAt-int64(skew/time.Second)
}
