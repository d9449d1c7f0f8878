package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/authkit/pkg/session"
)

// DB is the subset of *pgxpool.Pool used by CredentialStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	selectPair = `SELECT
	(SELECT value FROM session_credentials WHERE key = $1),
	(SELECT value FROM session_credentials WHERE key = $2)`

	upsertPair = `INSERT INTO session_credentials (key, value, updated_at)
VALUES ($1, $2, now()), ($3, $4, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	deletePair = `DELETE FROM session_credentials WHERE key IN ($1, $2)`
)

// CredentialStore keeps the token pair as two rows of session_credentials.
// Each operation is a single statement, so both rows change together.
type CredentialStore struct {
	db         DB
	accessKey  string
	renewalKey string
}

// NewCredentialStore stores the pair under prefix+"access_token" and
// prefix+"refresh_token". Run Migrate first.
func NewCredentialStore(db DB, prefix string) *CredentialStore {
	return &CredentialStore{
		db:         db,
		accessKey:  prefix + session.AccessTokenKey,
		renewalKey: prefix + session.RenewalTokenKey,
	}
}

func (s *CredentialStore) Get(ctx context.Context) (session.Pair, error) {
	var access, renewal *string
	if err := s.db.QueryRow(ctx, selectPair, s.accessKey, s.renewalKey).Scan(&access, &renewal); err != nil {
		return session.Pair{}, fmt.Errorf("select credentials: %w", err)
	}
	if access == nil || renewal == nil {
		return session.Pair{}, session.ErrNoSession
	}

	p := session.Pair{AccessToken: *access, RenewalToken: *renewal}
	if p.Validate() != nil {
		return session.Pair{}, session.ErrNoSession
	}
	return p, nil
}

func (s *CredentialStore) Put(ctx context.Context, p session.Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertPair, s.accessKey, p.AccessToken, s.renewalKey, p.RenewalToken); err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, deletePair, s.accessKey, s.renewalKey); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}
