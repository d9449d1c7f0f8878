package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	headerType      = "JWT"
	headerAlgorithm = "HS256"
)

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// StandardClaims are the registered claims of RFC 7519 section 4.1.
// Temporal claims are unix seconds; zero means unset.
type StandardClaims struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	Audience  string `json:"aud,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

// ValidAt checks the temporal claims against now, tolerating leeway of clock
// drift in both directions.
func (c StandardClaims) ValidAt(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt > 0 && !now.Before(time.Unix(c.ExpiresAt, 0).Add(leeway)) {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now.Add(leeway).Before(time.Unix(c.NotBefore, 0)) {
		return ErrInvalidToken
	}
	return nil
}

// Issuer mints and verifies HS256 access tokens. Clients that only need the
// expiry and subject of a token use Decode instead; it needs no key.
type Issuer struct {
	key    []byte
	name   string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with key.
func NewIssuer(key []byte, opts ...IssuerOption) (*Issuer, error) {
	if len(key) == 0 {
		return nil, ErrMissingSigningKey
	}
	i := &Issuer{
		key: key,
		ttl: 15 * time.Minute,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL is the lifetime Issue gives to new tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue mints an access token for subject with a fresh jti and returns it
// together with the claims it carries.
func (i *Issuer) Issue(subject string) (string, StandardClaims, error) {
	now := i.now()
	claims := StandardClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    i.name,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(i.ttl).Unix(),
	}
	token, err := i.Sign(claims)
	if err != nil {
		return "", StandardClaims{}, err
	}
	return token, claims, nil
}

// Sign encodes any JSON-serializable claims value as a signed token.
func (i *Issuer) Sign(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	h, err := json.Marshal(header{Type: headerType, Algorithm: headerAlgorithm})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	signed := base64URLEncode(h) + "." + base64URLEncode(c)
	return signed + "." + i.signature(signed), nil
}

// Verify checks the signature and algorithm of token, unmarshals its claims
// into claims and validates them. Claims implementing
// ValidAt(time.Time, time.Duration) error are checked against the issuer's
// clock; StandardClaims also must name this issuer when one is configured.
func (i *Issuer) Verify(token string, claims any) error {
	parts, err := split(token)
	if err != nil {
		return ErrInvalidToken
	}

	signed := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(i.signature(signed))) != 1 {
		return ErrInvalidSignature
	}

	var h header
	if err := decodeSegment(parts[0], &h); err != nil {
		return fmt.Errorf("%w: header: %w", ErrInvalidToken, err)
	}
	if h.Algorithm != headerAlgorithm {
		return ErrUnexpectedSigningMethod
	}
	if err := decodeSegment(parts[1], claims); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidClaims, err)
	}

	if v, ok := claims.(interface {
		ValidAt(time.Time, time.Duration) error
	}); ok {
		if err := v.ValidAt(i.now(), i.leeway); err != nil {
			return err
		}
	}
	if sc, ok := claims.(*StandardClaims); ok && i.name != "" && sc.Issuer != i.name {
		return ErrInvalidClaims
	}
	return nil
}

func (i *Issuer) signature(signed string) string {
	h := hmac.New(sha256.New, i.key)
	h.Write([]byte(signed))
	return base64URLEncode(h.Sum(nil))
}

// split returns the three segments of a compact token.
func split(token string) ([3]string, error) {
	var out [3]string
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return out, ErrMalformedToken
	}
	copy(out[:], parts)
	return out, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64URLDecode(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// base64URLDecode accepts both padded and unpadded input.
func base64URLDecode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
