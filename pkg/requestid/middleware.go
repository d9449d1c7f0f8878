package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const (
	Header      = "X-Request-ID"
	maxIDLength = 128
)

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// New returns a fresh request id.
func New() string {
	return uuid.NewString()
}

// Resolve returns id when it is a well-formed request id and a new one otherwise.
func Resolve(id string) string {
	if len(id) == 0 || len(id) > maxIDLength || !validID.MatchString(id) {
		return New()
	}
	return id
}

// Middleware accepts the caller's X-Request-ID (or assigns one), echoes it in
// the response and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := Resolve(r.Header.Get(Header))
		w.Header().Set(Header, id)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
	})
}
