package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MembershipsStore performs membership DB operations. Membership rows
// are the only record a conversation has; every resolver question
// ("which conversations is this user in", "who is in this
// conversation") is an index scan over this collection.
type MembershipsStore struct {
	coll *mongo.Collection
}

// NewMembershipsStore returns a MembershipsStore using the provided collection.
func NewMembershipsStore(coll *mongo.Collection) *MembershipsStore {
	return &MembershipsStore{coll: coll}
}

// AddMember inserts a membership row. The unique (user_id,
// conversation_id) index makes re-adding an existing member fail with
// ErrDuplicateKey, which is the storage-level backstop behind the
// resolver's already-a-member check.
func (m *MembershipsStore) AddMember(ctx context.Context, userID, conversationID string) error {
	row := Membership{
		UserID:         userID,
		ConversationID: conversationID,
		JoinedAt:       time.Now().UTC(),
	}
	_, err := m.coll.InsertOne(ctx, row)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("memberships: %s in %s: %w", userID, conversationID, ErrDuplicateKey)
		}
		return err
	}
	return nil
}

// RemoveMember deletes a membership row. DeletedCount doubles as the
// membership check: zero deletions means the user was not a member, and
// RemoveMember returns ErrNotFound.
func (m *MembershipsStore) RemoveMember(ctx context.Context, userID, conversationID string) error {
	result, err := m.coll.DeleteOne(ctx, bson.M{
		"user_id":         userID,
		"conversation_id": conversationID,
	})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("memberships: %s in %s: %w", userID, conversationID, ErrNotFound)
	}
	return nil
}

// ListByUser returns all memberships for a user.
func (m *MembershipsStore) ListByUser(ctx context.Context, userID string) ([]Membership, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []Membership
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByConversation returns all memberships of a conversation. An
// empty result means the conversation does not exist (or no longer
// does); there is no separate conversation document to consult.
func (m *MembershipsStore) ListByConversation(ctx context.Context, conversationID string) ([]Membership, error) {
	cursor, err := m.coll.Find(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []Membership
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
