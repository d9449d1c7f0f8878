package environment

import (
	"context"
	"strings"
)

// Environment names the deployment a process runs in.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Parse normalizes an environment name. The short forms "dev", "stage" and
// "prod" are accepted; unknown or empty names map to Development.
func Parse(name string) Environment {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}

type contextKey struct{}

// WithContext attaches env to ctx.
func WithContext(ctx context.Context, env Environment) context.Context {
	return context.WithValue(ctx, contextKey{}, env)
}

// FromContext returns the environment stored in ctx, or "" when absent.
func FromContext(ctx context.Context) Environment {
	if ctx == nil {
		return ""
	}
	env, _ := ctx.Value(contextKey{}).(Environment)
	return env
}

func IsProduction(ctx context.Context) bool  { return FromContext(ctx) == Production }
func IsStaging(ctx context.Context) bool     { return FromContext(ctx) == Staging }
func IsDevelopment(ctx context.Context) bool { return FromContext(ctx) == Development }
