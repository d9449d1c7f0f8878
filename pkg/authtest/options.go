package authtest

import (
	"log/slog"
	"time"
)

type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens. Default 15m.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRefreshDelay makes every refresh call wait d before answering.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) { s.refreshDelay = d }
}

// WithSigningKey sets the HS256 key for access tokens. A random key is used
// by default.
func WithSigningKey(key string) Option {
	return func(s *Server) { s.signingKey = key }
}

// WithBcryptCost is mostly for tests, which want bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.bcryptCost = cost }
}

// WithUser seeds an account.
func WithUser(email, password string) Option {
	return func(s *Server) {
		s.seed = append(s.seed, seedUser{email: email, password: password})
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}
