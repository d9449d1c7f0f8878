package session

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx     context.Context
	manager *Manager
}

// TokenSource exposes the session as an oauth2.TokenSource so clients built
// on golang.org/x/oauth2 (oauth2.NewClient, gRPC per-RPC credentials) can
// share it. Token returns the current access token while it is valid and
// renews through the coordinator otherwise.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, manager: m}
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	m := s.manager
	sess := m.Session()
	if !sess.IsAuthenticatedAt(m.now(), m.config.ClockSkew) {
		var err error
		if sess, err = m.ObtainFreshSession(s.ctx); err != nil {
			return nil, err
		}
	}
	return &oauth2.Token{
		AccessToken: sess.AccessToken,
		TokenType:   "Bearer",
		Expiry:      sess.Expiry(),
	}, nil
}
