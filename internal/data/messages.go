package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll}
}

// InsertMessage stores a message document. The unique
// (conversation_id, timestamp) index rejects a sort-key collision with
// ErrDuplicateKey so the caller can retry with a fresh tie-break
// suffix instead of silently overwriting another message.
func (m *MessagesStore) InsertMessage(ctx context.Context, msg *Message) error {
	_, err := m.coll.InsertOne(ctx, msg)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("messages: %s at %s: %w", msg.ConversationID, msg.Timestamp, ErrDuplicateKey)
		}
		return err
	}
	return nil
}

// ListByConversation returns a conversation's messages ordered
// oldest→newest. A non-empty since bound is exclusive: only messages
// with a strictly greater sort key are returned, which is exactly
// string comparison because the keys are fixed-width.
func (m *MessagesStore) ListByConversation(ctx context.Context, conversationID, since string) ([]*Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if since != "" {
		filter["timestamp"] = bson.M{"$gt": since}
	}

	// Ascending sort over the (conversation_id, timestamp) index; no
	// in-memory reordering needed.
	opts := options.Find().SetSort(bson.M{"timestamp": 1})

	cursor, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateSender conditionally replaces the sender snapshot of one
// message. The condition (the message still exists and its sender is
// still senderID) is folded into the filter; a benign miss comes back
// as (false, nil), not an error, because repair racing a delete is
// expected.
func (m *MessagesStore) UpdateSender(ctx context.Context, conversationID, timestamp, senderID string, snap SenderSnapshot) (bool, error) {
	filter := bson.M{
		"conversation_id": conversationID,
		"timestamp":       timestamp,
		"sender.user_id":  senderID,
	}
	result, err := m.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"sender": snap}})
	if err != nil {
		return false, err
	}
	return result.MatchedCount > 0, nil
}
