package requestid

import "net/http"

// Transport stamps X-Request-ID on outgoing requests. An id already on the
// request wins, then one stored in the request context, then a new one. The
// caller's request is never modified.
type Transport struct {
	Base http.RoundTripper
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(base http.RoundTripper) *Transport {
	return &Transport{Base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Header.Get(Header) != "" {
		return base.RoundTrip(req)
	}

	id := FromContext(req.Context())
	if id == "" {
		id = New()
	}

	out := req.Clone(WithContext(req.Context(), id))
	out.Header.Set(Header, id)
	return base.RoundTrip(out)
}
