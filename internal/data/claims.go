package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ClaimsStore records which participant set owns which conversation.
// A claim's _id is the fingerprint of the sorted participant set, so
// claiming is a single conditional insert: first writer wins, everyone
// else gets ErrDuplicateKey and reads the winner's conversation id.
type ClaimsStore struct {
	coll *mongo.Collection
}

// NewClaimsStore returns a ClaimsStore using the provided collection.
func NewClaimsStore(coll *mongo.Collection) *ClaimsStore {
	return &ClaimsStore{coll: coll}
}

// Claim inserts the fingerprint→conversation mapping if no claim for
// the fingerprint exists yet.
func (c *ClaimsStore) Claim(ctx context.Context, fingerprint, conversationID string) error {
	claim := ConversationClaim{
		Fingerprint:    fingerprint,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := c.coll.InsertOne(ctx, claim)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("claims: %s: %w", fingerprint, ErrDuplicateKey)
		}
		return err
	}
	return nil
}

// GetClaim returns the claim for a fingerprint.
func (c *ClaimsStore) GetClaim(ctx context.Context, fingerprint string) (*ConversationClaim, error) {
	var claim ConversationClaim
	err := c.coll.FindOne(ctx, bson.M{"_id": fingerprint}).Decode(&claim)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("claims: %s: %w", fingerprint, ErrNotFound)
		}
		return nil, err
	}
	return &claim, nil
}
