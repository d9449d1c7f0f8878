package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/authkit/pkg/session"
)

// CredentialStore keeps the token pair in two string keys. Writes use a
// single MSET and reads a single MGET, so the pair is never observed half
// written; Clear deletes both keys with one DEL.
type CredentialStore struct {
	db         redis.UniversalClient
	accessKey  string
	renewalKey string
}

// NewCredentialStore stores the pair under the keys returned by CredentialKeys.
func NewCredentialStore(client redis.UniversalClient, prefix string) *CredentialStore {
	access, renewal := CredentialKeys(prefix)
	return &CredentialStore{
		db:         client,
		accessKey:  access,
		renewalKey: renewal,
	}
}

// CredentialKeys returns the access and renewal token keys for prefix. The
// prefix is wrapped in a hash tag ("{prefix}") so both keys land in the same
// cluster slot and MSET/MGET keep working against Redis Cluster. A prefix
// that already carries a hash tag is used as is.
func CredentialKeys(prefix string) (access, renewal string) {
	if !hasHashTag(prefix) {
		prefix = "{" + prefix + "}"
	}
	return prefix + session.AccessTokenKey, prefix + session.RenewalTokenKey
}

// hasHashTag mirrors the cluster rule: the first "{" followed later by a "}"
// with at least one byte between them.
func hasHashTag(key string) bool {
	open := strings.IndexByte(key, '{')
	if open < 0 {
		return false
	}
	return strings.IndexByte(key[open+1:], '}') > 0
}

func (s *CredentialStore) Get(ctx context.Context) (session.Pair, error) {
	vals, err := s.db.MGet(ctx, s.accessKey, s.renewalKey).Result()
	if err != nil {
		return session.Pair{}, fmt.Errorf("redis mget credentials: %w", err)
	}

	access, _ := vals[0].(string)
	renewal, _ := vals[1].(string)
	p := session.Pair{AccessToken: access, RenewalToken: renewal}
	if p.Validate() != nil {
		return session.Pair{}, session.ErrNoSession
	}
	return p, nil
}

func (s *CredentialStore) Put(ctx context.Context, p session.Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.db.MSet(ctx, s.accessKey, p.AccessToken, s.renewalKey, p.RenewalToken).Err(); err != nil {
		return fmt.Errorf("redis mset credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.db.Del(ctx, s.accessKey, s.renewalKey).Err(); err != nil {
		return fmt.Errorf("redis del credentials: %w", err)
	}
	return nil
}
