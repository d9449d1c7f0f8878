package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrymomot/authkit/pkg/logger"
	"github.com/dmitrymomot/authkit/pkg/requestid"
)

// Retry outcomes recorded by Metrics.Retries.
const (
	retryRenewed       = "renewed"
	retryReused        = "reused"
	retryRenewalFailed = "renewal_failed"
	retryNotReplayable = "not_replayable"
)

// Transport is an http.RoundTripper that attaches the current access token to
// API requests. When such a request comes back 401 it obtains a fresh session
// and resends the request once. If renewal fails the session is ended and the
// original 401 response is returned unchanged.
type Transport struct {
	base    http.RoundTripper
	manager *Manager
}

// Transport wraps base (http.DefaultTransport when nil).
func (m *Manager) Transport(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{base: base, manager: m}
}

// HTTPClient returns a client whose requests are authorized by m and carry an
// X-Request-ID shared by a request and its retry.
func (m *Manager) HTTPClient() *http.Client {
	return &http.Client{Transport: requestid.NewTransport(m.Transport(nil))}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	m := t.manager
	if !m.endpoints.Protected(req.URL) {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	out, err := replayable(req, m.config.MaxReplayBody)
	if err != nil {
		return nil, err
	}

	var sent string
	if sess := m.Session(); sess != nil && sess.AccessToken != "" {
		sent = sess.AccessToken
		out.Header.Set("Authorization", "Bearer "+sent)
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	log := m.logger.With(
		logger.Endpoint(req.Method, req.URL),
		logger.RequestID(out.Header.Get(requestid.Header)),
	)

	fresh, result, err := t.freshSession(ctx, sent)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			drain(resp)
			return nil, cerr
		}
		// the failed renewal has already ended the session
		log.WarnContext(ctx, "request unauthorized and renewal failed", logger.Error(err))
		m.metrics.retry(retryRenewalFailed)
		return resp, nil
	}

	retry, err := rebuild(out, fresh.AccessToken)
	if err != nil {
		log.WarnContext(ctx, "request body cannot be replayed", logger.Error(err))
		m.metrics.retry(retryNotReplayable)
		return resp, nil
	}
	drain(resp)

	m.metrics.retry(result)
	log.DebugContext(ctx, "retrying request with renewed token", logger.RetryCount(1))
	return t.base.RoundTrip(retry)
}

// freshSession returns a session to retry with. When another request already
// renewed since sent was attached, the current token is reused instead of
// starting another renewal.
func (t *Transport) freshSession(ctx context.Context, sent string) (*Session, string, error) {
	m := t.manager
	if cur := m.Session(); cur != nil && cur.AccessToken != sent &&
		cur.IsAuthenticatedAt(m.now(), m.config.ClockSkew) {
		return cur, retryReused, nil
	}
	sess, err := m.ObtainFreshSession(ctx)
	return sess, retryRenewed, err
}

// replayable clones req and makes sure its body can be read twice. Bodies
// larger than limit are passed through unbuffered; such a request has no
// GetBody and is not retried.
func replayable(req *http.Request, limit int64) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	if req.ContentLength > limit {
		return out, nil
	}

	buf, err := io.ReadAll(io.LimitReader(req.Body, limit+1))
	if err != nil {
		req.Body.Close()
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	if int64(len(buf)) > limit {
		out.Body = struct {
			io.Reader
			io.Closer
		}{io.MultiReader(bytes.NewReader(buf), req.Body), req.Body}
		return out, nil
	}
	req.Body.Close()

	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(buf)), nil
	}
	out.Body, _ = out.GetBody()
	out.ContentLength = int64(len(buf))
	return out, nil
}

func rebuild(prev *http.Request, token string) (*http.Request, error) {
	retry := prev.Clone(prev.Context())
	if prev.Body != nil && prev.Body != http.NoBody {
		if prev.GetBody == nil {
			return nil, errors.New("request body has no GetBody")
		}
		body, err := prev.GetBody()
		if err != nil {
			return nil, fmt.Errorf("reopen request body: %w", err)
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return retry, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
