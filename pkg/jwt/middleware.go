package jwt

import (
	"net/http"
	"strings"
)

// TokenExtractorFunc defines a function that extracts a token from an HTTP request.
type TokenExtractorFunc func(r *http.Request) (string, error)

// MiddlewareConfig configures JWT middleware behavior.
type MiddlewareConfig struct {
	Issuer    *Issuer
	Extractor TokenExtractorFunc // defaults to BearerTokenExtractor
	// Unauthorized writes the rejection. Defaults to a plain 401.
	Unauthorized func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware verifies bearer tokens and injects StandardClaims into the request context.
func Middleware(iss *Issuer) func(next http.Handler) http.Handler {
	return MiddlewareWithConfig(MiddlewareConfig{Issuer: iss})
}

// MiddlewareWithConfig creates JWT middleware with custom configuration.
func MiddlewareWithConfig(config MiddlewareConfig) func(next http.Handler) http.Handler {
	if config.Extractor == nil {
		config.Extractor = BearerTokenExtractor
	}
	if config.Unauthorized == nil {
		config.Unauthorized = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusUnauthorized)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := config.Extractor(r)
			if err != nil {
				config.Unauthorized(w, r, err)
				return
			}

			var claims StandardClaims
			if err := config.Issuer.Verify(tokenString, &claims); err != nil {
				config.Unauthorized(w, r, err)
				return
			}

			ctx := SetToken(r.Context(), tokenString)
			ctx = SetClaims(ctx, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerTokenExtractor extracts tokens from "Authorization: Bearer <token>" headers (RFC 6750).
func BearerTokenExtractor(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}
