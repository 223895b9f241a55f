// Package chat implements the messaging domain: user directory,
// conversation resolution, message posting and reads, push fan-out and
// snapshot repair. Storage and task transport are reached only through
// the narrow interfaces below so every service can be exercised against
// in-memory fakes.
package chat

import (
	"context"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

// UserStore is the slice of the users collection the services need.
type UserStore interface {
	CreateUser(ctx context.Context, user *data.User) error
	GetUserByID(ctx context.Context, id string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*data.User, error)
	UpdateUser(ctx context.Context, id string, patch data.UserPatch) (*data.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// MembershipStore is the membership arena: one row per (user,
// conversation) pair, queryable from either half of the key.
type MembershipStore interface {
	AddMember(ctx context.Context, userID, conversationID string) error
	RemoveMember(ctx context.Context, userID, conversationID string) error
	ListByUser(ctx context.Context, userID string) ([]data.Membership, error)
	ListByConversation(ctx context.Context, conversationID string) ([]data.Membership, error)
}

// MessageStore persists messages under their (conversation, timestamp)
// sort key.
type MessageStore interface {
	InsertMessage(ctx context.Context, msg *data.Message) error
	ListByConversation(ctx context.Context, conversationID, since string) ([]*data.Message, error)
	UpdateSender(ctx context.Context, conversationID, timestamp, senderID string, snap data.SenderSnapshot) (bool, error)
}

// ClaimStore owns the participant-set fingerprint records that make
// conversation creation race-safe.
type ClaimStore interface {
	Claim(ctx context.Context, fingerprint, conversationID string) error
	GetClaim(ctx context.Context, fingerprint string) (*data.ConversationClaim, error)
}

// Dispatcher hands an operation to the out-of-band task runner.
// Delivery is at-most-once and nothing about the execution is reported
// back; callers must not depend on the task running at all.
type Dispatcher interface {
	Dispatch(ctx context.Context, operation string, payload any) error
}

// ConversationResolver is the membership view other services consume.
type ConversationResolver interface {
	ListConversationIDs(ctx context.Context, userID string) ([]string, error)
	ListMembers(ctx context.Context, conversationID string) ([]*data.User, error)
}

// HistoryService is the full-history view consumed by snapshot repair.
type HistoryService interface {
	History(ctx context.Context, userID string) ([]*ConversationView, error)
}

var (
	_ UserStore       = (*data.UsersStore)(nil)
	_ MembershipStore = (*data.MembershipsStore)(nil)
	_ MessageStore    = (*data.MessagesStore)(nil)
	_ ClaimStore      = (*data.ClaimsStore)(nil)

	_ ConversationResolver = (*Conversations)(nil)
	_ HistoryService       = (*Messages)(nil)
)
