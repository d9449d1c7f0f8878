// Package requestid correlates HTTP calls with an X-Request-ID header.
//
// On the client side Transport stamps every outgoing request with an id,
// taken from the request, its context or freshly generated UUID, so that a
// request and its single retry after a token renewal share one id. On the
// server side Middleware accepts a well-formed incoming id or assigns one and
// echoes it back. LoggerExtractor plugs the id into pkg/logger.
//
//	client := &http.Client{Transport: requestid.NewTransport(sessions.Transport(nil))}
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
package requestid
