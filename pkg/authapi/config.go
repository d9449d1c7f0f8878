package authapi

import "time"

// Config holds the backend location.
type Config struct {
	BaseURL string        `env:"AUTH_API_URL"`
	Timeout time.Duration `env:"AUTH_API_TIMEOUT" envDefault:"30s"`
}
