package session

import "time"

// Config holds session coordination settings.
type Config struct {
	// APIBaseURLs limits request decoration to URLs starting with one of these
	// prefixes. Empty means every request is an API request.
	APIBaseURLs []string `env:"SESSION_API_BASE_URLS" envSeparator:","`

	// AuthPaths are path suffixes (case-insensitive) never decorated or retried.
	AuthPaths []string `env:"SESSION_AUTH_PATHS" envSeparator:"," envDefault:"/auth/login,/auth/register,/auth/refresh"`

	// RenewLead is how long before expiry the scheduler renews.
	RenewLead time.Duration `env:"SESSION_RENEW_LEAD" envDefault:"60s"`

	// MinRenewDelay is the smallest delay the scheduler will arm with.
	MinRenewDelay time.Duration `env:"SESSION_MIN_RENEW_DELAY" envDefault:"2s"`

	// ClockSkew is subtracted from the expiry when answering IsAuthenticated.
	ClockSkew time.Duration `env:"SESSION_CLOCK_SKEW" envDefault:"5s"`

	// MaxReplayBody is the largest request body buffered for the retry after
	// a 401. Larger bodies are streamed and their requests are not retried.
	MaxReplayBody int64 `env:"SESSION_MAX_REPLAY_BODY" envDefault:"1048576"`
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		AuthPaths:     []string{"/auth/login", "/auth/register", "/auth/refresh"},
		RenewLead:     60 * time.Second,
		MinRenewDelay: 2 * time.Second,
		ClockSkew:     5 * time.Second,
		MaxReplayBody: 1 << 20,
	}
}

// NewFromConfig creates a Manager from cfg. Store and Authenticator still
// have to be supplied through options.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}
