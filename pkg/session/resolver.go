package session

import (
	"net/url"
	"strings"
)

// EndpointMatcher decides which outgoing requests carry the access token.
type EndpointMatcher struct {
	baseURLs  []string
	authPaths []string
}

// NewEndpointMatcher builds a matcher. Requests whose URL starts with one of
// baseURLs are API requests; with no base URLs every request is. Paths ending
// in one of authPaths (compared case-insensitively) are auth endpoints.
func NewEndpointMatcher(baseURLs []string, authPaths ...string) *EndpointMatcher {
	m := &EndpointMatcher{}
	for _, b := range baseURLs {
		if b = strings.TrimSpace(b); b != "" {
			m.baseURLs = append(m.baseURLs, b)
		}
	}
	for _, p := range authPaths {
		if p = strings.TrimRight(strings.TrimSpace(p), "/"); p != "" {
			m.authPaths = append(m.authPaths, strings.ToLower(p))
		}
	}
	return m
}

// IsAPI reports whether u targets one of the configured APIs.
func (m *EndpointMatcher) IsAPI(u *url.URL) bool {
	if u == nil {
		return false
	}
	if len(m.baseURLs) == 0 {
		return true
	}
	s := u.String()
	for _, b := range m.baseURLs {
		if strings.HasPrefix(s, b) {
			return true
		}
	}
	return false
}

// IsAuthEndpoint reports whether u is a login, registration or refresh call.
func (m *EndpointMatcher) IsAuthEndpoint(u *url.URL) bool {
	if u == nil {
		return false
	}
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))
	for _, p := range m.authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// Protected reports whether a request to u should be authorized and retried.
func (m *EndpointMatcher) Protected(u *url.URL) bool {
	return m.IsAPI(u) && !m.IsAuthEndpoint(u)
}
