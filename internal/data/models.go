package data

import "time"

// User maps to the users collection. The _id is the caller-assigned
// userId (from the identity provider), not a Mongo ObjectID, so a plain
// InsertOne doubles as the "create only if absent" write. PhoneNumber
// and Email are optional alternate keys; omitempty keeps absent values
// out of the document so the partial unique indexes ignore them.
type User struct {
	ID          string    `bson:"_id" json:"userId"`
	DisplayName string    `bson:"display_name" json:"displayName"`
	PhoneNumber string    `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	Email       string    `bson:"email,omitempty" json:"email,omitempty"`
	FCMToken    string    `bson:"fcm_token,omitempty" json:"fcmToken,omitempty"`
	CreatedAt   time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `bson:"updated_at" json:"updatedAt"`
}

// SenderSnapshot is the denormalized copy of a user embedded in every
// message at post time. Reads never join back to users; consistency
// repair rewrites these in place after a profile update.
type SenderSnapshot struct {
	UserID      string `bson:"user_id" json:"userId"`
	DisplayName string `bson:"display_name" json:"displayName"`
	PhoneNumber string `bson:"phone_number,omitempty" json:"phoneNumber,omitempty"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	FCMToken    string `bson:"fcm_token,omitempty" json:"fcmToken,omitempty"`
}

// Snapshot copies the user's current state into an embeddable snapshot.
func (u *User) Snapshot() SenderSnapshot {
	return SenderSnapshot{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		PhoneNumber: u.PhoneNumber,
		Email:       u.Email,
		FCMToken:    u.FCMToken,
	}
}

// Membership maps to the memberships collection: one document per
// (user, conversation) pair, duplicates prevented by a unique compound
// index. Conversations have no document of their own; a conversation
// exists exactly as long as it has members.
type Membership struct {
	UserID         string    `bson:"user_id" json:"userId"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	JoinedAt       time.Time `bson:"joined_at" json:"joinedAt"`
}

// Message maps to the messages collection. Timestamp is a fixed-width
// RFC 3339 UTC string with a random tie-break suffix; lexicographic
// order on it is chronological order, and (conversation_id, timestamp)
// is the unique sort key.
type Message struct {
	ConversationID string         `bson:"conversation_id" json:"conversationId"`
	Timestamp      string         `bson:"timestamp" json:"timestamp"`
	Text           string         `bson:"message" json:"message"`
	Sender         SenderSnapshot `bson:"sender" json:"sender"`
}

// ConversationClaim maps to the conversation_claims collection. The _id
// is a fingerprint of the sorted participant set; inserting it is the
// winner-takes-all step that keeps two concurrent initiations of the
// same group from minting two conversations.
type ConversationClaim struct {
	Fingerprint    string    `bson:"_id" json:"fingerprint"`
	ConversationID string    `bson:"conversation_id" json:"conversationId"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
}
