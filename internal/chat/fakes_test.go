package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

// In-memory stores mirroring the MongoDB stores' contracts, including
// the duplicate-key and not-found sentinels the services branch on.

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*data.User
}

func newFakeUsers(users ...*data.User) *fakeUsers {
	f := &fakeUsers{users: make(map[string]*data.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) CreateUser(_ context.Context, user *data.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; ok {
		return data.ErrDuplicateKey
	}
	for _, u := range f.users {
		if user.Email != "" && u.Email == user.Email {
			return data.ErrDuplicateKey
		}
		if user.PhoneNumber != "" && u.PhoneNumber == user.PhoneNumber {
			return data.ErrDuplicateKey
		}
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email && email != "" {
			copied := *u
			return &copied, nil
		}
	}
	return nil, data.ErrNotFound
}

func (f *fakeUsers) GetUserByPhone(_ context.Context, phone string) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.PhoneNumber == phone && phone != "" {
			copied := *u
			return &copied, nil
		}
	}
	return nil, data.ErrNotFound
}

func (f *fakeUsers) UpdateUser(_ context.Context, id string, patch data.UserPatch) (*data.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	if patch.DisplayName != nil {
		u.DisplayName = *patch.DisplayName
	}
	if patch.FCMToken != nil {
		u.FCMToken = *patch.FCMToken
	}
	u.UpdatedAt = time.Now().UTC()
	copied := *u
	return &copied, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

type fakeMemberships struct {
	mu   sync.Mutex
	rows []data.Membership
}

func (f *fakeMemberships) AddMember(_ context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.UserID == userID && r.ConversationID == conversationID {
			return data.ErrDuplicateKey
		}
	}
	f.rows = append(f.rows, data.Membership{
		UserID:         userID,
		ConversationID: conversationID,
		JoinedAt:       time.Now().UTC(),
	})
	return nil
}

func (f *fakeMemberships) RemoveMember(_ context.Context, userID, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.UserID == userID && r.ConversationID == conversationID {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return data.ErrNotFound
}

func (f *fakeMemberships) ListByUser(_ context.Context, userID string) ([]data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Membership
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMemberships) ListByConversation(_ context.Context, conversationID string) ([]data.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []data.Membership
	for _, r := range f.rows {
		if r.ConversationID == conversationID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeMessages struct {
	mu   sync.Mutex
	msgs []*data.Message
	// dupNext forces the next n inserts to report a sort-key collision.
	dupNext int
}

func (f *fakeMessages) InsertMessage(_ context.Context, msg *data.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupNext > 0 {
		f.dupNext--
		return data.ErrDuplicateKey
	}
	for _, m := range f.msgs {
		if m.ConversationID == msg.ConversationID && m.Timestamp == msg.Timestamp {
			return data.ErrDuplicateKey
		}
	}
	stored := *msg
	f.msgs = append(f.msgs, &stored)
	return nil
}

func (f *fakeMessages) ListByConversation(_ context.Context, conversationID, since string) ([]*data.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*data.Message
	for _, m := range f.msgs {
		if m.ConversationID != conversationID {
			continue
		}
		if since != "" && m.Timestamp <= since {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (f *fakeMessages) UpdateSender(_ context.Context, conversationID, timestamp, senderID string, snap data.SenderSnapshot) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.ConversationID == conversationID && m.Timestamp == timestamp && m.Sender.UserID == senderID {
			m.Sender = snap
			return true, nil
		}
	}
	return false, nil
}

type fakeClaims struct {
	mu     sync.Mutex
	claims map[string]*data.ConversationClaim
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{claims: make(map[string]*data.ConversationClaim)}
}

func (f *fakeClaims) Claim(_ context.Context, fingerprint, conversationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.claims[fingerprint]; ok {
		return data.ErrDuplicateKey
	}
	f.claims[fingerprint] = &data.ConversationClaim{
		Fingerprint:    fingerprint,
		ConversationID: conversationID,
		CreatedAt:      time.Now().UTC(),
	}
	return nil
}

func (f *fakeClaims) GetClaim(_ context.Context, fingerprint string) (*data.ConversationClaim, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	claim, ok := f.claims[fingerprint]
	if !ok {
		return nil, data.ErrNotFound
	}
	copied := *claim
	return &copied, nil
}

type dispatched struct {
	operation string
	payload   any
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []dispatched
	err   error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, operation string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, dispatched{operation: operation, payload: payload})
	return nil
}

func (f *fakeDispatcher) dispatchedOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, len(f.calls))
	for i, c := range f.calls {
		ops[i] = c.operation
	}
	return ops
}
