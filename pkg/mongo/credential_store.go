package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/authkit/pkg/session"
)

type credentialDoc struct {
	ID           string    `bson:"_id"`
	AccessToken  string    `bson:"access_token"`
	RenewalToken string    `bson:"refresh_token"`
	UpdatedAt    time.Time `bson:"updated_at"`
}

// CredentialStore keeps the token pair in one document keyed by the prefix.
// Put replaces the whole document, so both tokens change together.
type CredentialStore struct {
	coll *mongo.Collection
	id   string
}

// NewCredentialStore stores the pair in coll under _id = prefix.
func NewCredentialStore(coll *mongo.Collection, prefix string) *CredentialStore {
	return &CredentialStore{coll: coll, id: prefix}
}

func (s *CredentialStore) Get(ctx context.Context) (session.Pair, error) {
	var doc credentialDoc
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: s.id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Pair{}, session.ErrNoSession
	}
	if err != nil {
		return session.Pair{}, fmt.Errorf("mongo find credentials: %w", err)
	}

	p := session.Pair{AccessToken: doc.AccessToken, RenewalToken: doc.RenewalToken}
	if p.Validate() != nil {
		return session.Pair{}, session.ErrNoSession
	}
	return p, nil
}

func (s *CredentialStore) Put(ctx context.Context, p session.Pair) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc := credentialDoc{
		ID:           s.id,
		AccessToken:  p.AccessToken,
		RenewalToken: p.RenewalToken,
		UpdatedAt:    time.Now().UTC(),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: s.id}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo replace credentials: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: s.id}}); err != nil {
		return fmt.Errorf("mongo delete credentials: %w", err)
	}
	return nil
}
