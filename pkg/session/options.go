package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authkit/pkg/broadcast"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// LogoutHandler is called after an effective logout. reason is nil for an
// explicit Logout and carries the renewal error for a forced one.
type LogoutHandler func(ctx context.Context, reason error)

// WithStore sets where the token pair is persisted. Defaults to a MemoryStore.
func WithStore(store Store) Option {
	return func(m *Manager) {
		if store != nil {
			m.store = store
		}
	}
}

// WithAuthenticator sets the backend client used for login, registration
// and renewal. Required.
func WithAuthenticator(auth Authenticator) Option {
	return func(m *Manager) {
		m.auth = auth
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithAPIBaseURLs restricts request decoration to the given URL prefixes.
func WithAPIBaseURLs(urls ...string) Option {
	return func(m *Manager) {
		m.config.APIBaseURLs = append(m.config.APIBaseURLs, urls...)
	}
}

// WithRenewLead sets how long before expiry renewal is scheduled.
func WithRenewLead(lead time.Duration) Option {
	return func(m *Manager) {
		m.config.RenewLead = lead
	}
}

// WithMaxReplayBody sets the largest request body Transport buffers so the
// request can be resent after a renewal.
func WithMaxReplayBody(n int64) Option {
	return func(m *Manager) {
		m.config.MaxReplayBody = n
	}
}

// WithLogger sets the logger. Defaults to one that discards.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithBroadcaster sets the broadcaster used to publish auth change events.
func WithBroadcaster(b broadcast.Broadcaster[Event]) Option {
	return func(m *Manager) {
		if b != nil {
			m.events = b
		}
	}
}

// WithLogoutHandler registers fn to run after every effective logout.
func WithLogoutHandler(fn LogoutHandler) Option {
	return func(m *Manager) {
		if fn != nil {
			m.onLogout = append(m.onLogout, fn)
		}
	}
}

// WithClock overrides the time source used for expiry checks and scheduling.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}
