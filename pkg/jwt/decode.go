package jwt

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Decoded holds the claims a client needs from an access token.
// ExpiresAt is 0 when the token carries no numeric "exp" claim;
// Subject is empty when there is no string "sub" claim.
type Decoded struct {
	ExpiresAt int64
	Subject   string
}

// Result is the outcome of Decode: either Decoded claims or Undecodable
// with the reason attached.
type Result struct {
	claims Decoded
	reason error
}

// Undecodable builds a failed Result.
func Undecodable(reason error) Result {
	if reason == nil {
		reason = ErrMalformedToken
	}
	return Result{reason: reason}
}

// Claims returns the decoded claims and true, or the zero value and false
// when the token could not be decoded.
func (r Result) Claims() (Decoded, bool) {
	return r.claims, r.reason == nil
}

// Reason returns why decoding failed, or nil.
func (r Result) Reason() error {
	return r.reason
}

// ExpiresAt returns the expiry or 0 when undecodable.
func (r Result) ExpiresAt() int64 {
	return r.claims.ExpiresAt
}

// Subject returns the subject or "" when undecodable.
func (r Result) Subject() string {
	return r.claims.Subject
}

// Decode reads the claims segment of a compact token without verifying the
// signature. It never panics and never returns an error: malformed input
// yields an Undecodable result.
func Decode(token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return Undecodable(ErrEmptyToken)
	}

	parts, err := split(token)
	if err != nil || parts[1] == "" {
		return Undecodable(ErrMalformedToken)
	}

	raw, err := base64URLDecode(parts[1])
	if err != nil {
		return Undecodable(ErrInvalidEncoding)
	}

	var claims map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil || claims == nil {
		return Undecodable(ErrInvalidClaims)
	}

	out := Decoded{}
	if n, ok := claims["exp"].(json.Number); ok {
		out.ExpiresAt = numericDate(n)
	}
	if sub, ok := claims["sub"].(string); ok {
		out.Subject = sub
	}

	return Result{claims: out}
}

// DecodeExpiry returns the "exp" claim of token, or 0 when it cannot be read.
// Callers treat 0 as already expired.
func DecodeExpiry(token string) int64 {
	return Decode(token).ExpiresAt()
}

// DecodeSubject returns the "sub" claim of token and whether it was present.
func DecodeSubject(token string) (string, bool) {
	sub := Decode(token).Subject()
	return sub, sub != ""
}

// numericDate accepts integer and fractional NumericDate values (RFC 7519 section 2).
func numericDate(n json.Number) int64 {
	if i, err := n.Int64(); err == nil {
		return max(i, 0)
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f >= math.MaxInt64 {
		return 0
	}
	return int64(f)
}
