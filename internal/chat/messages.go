package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

// timestampLayout is fixed-width (zero-padded nanoseconds, literal Z)
// so that lexicographic order over formatted instants equals
// chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// newTimestamp builds a message sort key: the current instant in
// fixed-width UTC plus a random tie-break suffix. Two posts in the
// same nanosecond still get distinct, consistently ordered keys; the
// unique index is the backstop for the one-in-65536 suffix collision.
func newTimestamp(now time.Time) string {
	return fmt.Sprintf("%s-%04x", now.UTC().Format(timestampLayout), rand.Uint32()&0xffff)
}

// ConversationView is a read snapshot of one conversation: its current
// members and its messages in chronological order.
type ConversationView struct {
	ConversationID string          `json:"conversationId"`
	Users          []*data.User    `json:"users"`
	Messages       []*data.Message `json:"messages"`
}

// Messages posts to and reads from conversations. Posting authorizes
// the sender and freezes their profile into the message; reads
// authorize the requester against the current member set.
type Messages struct {
	users    UserStore
	messages MessageStore
	resolver ConversationResolver
	tasks    Dispatcher
	log      *slog.Logger
}

// NewMessages returns a Messages service over the given collaborators.
func NewMessages(users UserStore, messages MessageStore, resolver ConversationResolver, tasks Dispatcher, log *slog.Logger) *Messages {
	if log == nil {
		log = slog.Default()
	}
	return &Messages{users: users, messages: messages, resolver: resolver, tasks: tasks, log: log}
}

// Post appends a message to a conversation the sender belongs to. The
// stored message embeds a snapshot of the sender's profile as of this
// call. With notify set, a push fan-out task is scheduled after the
// write; its fate never changes the outcome of Post.
func (s *Messages) Post(ctx context.Context, senderID, conversationID, text string, notify bool) (*data.Message, error) {
	senderID = strings.TrimSpace(senderID)
	conversationID = strings.TrimSpace(conversationID)
	if senderID == "" || conversationID == "" {
		return nil, fmt.Errorf("%w: senderId and conversationId are required", ErrInvalidArgument)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text must not be empty", ErrInvalidArgument)
	}

	sender, err := s.users.GetUserByID(ctx, senderID)
	if errors.Is(err, data.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSender, senderID)
	}
	if err != nil {
		return nil, err
	}

	conversationIDs, err := s.resolver.ListConversationIDs(ctx, senderID)
	if err != nil {
		return nil, err
	}
	member := false
	for _, id := range conversationIDs {
		if id == conversationID {
			member = true
			break
		}
	}
	if !member {
		return nil, fmt.Errorf("%w: user %s in conversation %s", ErrMembershipRequired, senderID, conversationID)
	}

	msg := &data.Message{
		ConversationID: conversationID,
		Timestamp:      newTimestamp(time.Now()),
		Text:           text,
		Sender:         sender.Snapshot(),
	}
	if err := s.messages.InsertMessage(ctx, msg); err != nil {
		// Sort-key collision: same nanosecond, same suffix. One retry
		// with a fresh suffix settles it.
		if errors.Is(err, data.ErrDuplicateKey) {
			msg.Timestamp = newTimestamp(time.Now())
			err = s.messages.InsertMessage(ctx, msg)
		}
		if err != nil {
			return nil, err
		}
	}

	if notify {
		task := NotifyTask{ConversationID: conversationID, SenderID: senderID, Message: text}
		if err := s.tasks.Dispatch(ctx, OpSendPushNotifications, task); err != nil {
			s.log.Warn("failed to schedule push notifications",
				"conversation_id", conversationID, "error", err)
		}
	}

	s.log.Info("message posted", "conversation_id", conversationID, "sender_id", senderID)
	return msg, nil
}

// Get returns a conversation snapshot for a requester who is a member:
// the resolved member list and all messages, oldest first. A non-empty
// since bound restricts messages to sort keys strictly greater than it.
func (s *Messages) Get(ctx context.Context, conversationID, requesterID, since string) (*ConversationView, error) {
	conversationID = strings.TrimSpace(conversationID)
	requesterID = strings.TrimSpace(requesterID)
	if conversationID == "" || requesterID == "" {
		return nil, fmt.Errorf("%w: conversationId and requesterId are required", ErrInvalidArgument)
	}

	members, err := s.resolver.ListMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	isMember := false
	for _, m := range members {
		if m.ID == requesterID {
			isMember = true
			break
		}
	}
	if !isMember {
		return nil, fmt.Errorf("%w: user %s in conversation %s", ErrMembershipRequired, requesterID, conversationID)
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID, since)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*data.Message{}
	}

	return &ConversationView{
		ConversationID: conversationID,
		Users:          members,
		Messages:       messages,
	}, nil
}

// History returns a snapshot of every conversation the user is in,
// fetched in parallel. The first per-conversation failure cancels the
// remaining fetches and fails the whole call; there are no partial
// results.
func (s *Messages) History(ctx context.Context, userID string) ([]*ConversationView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}

	conversationIDs, err := s.resolver.ListConversationIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*ConversationView, len(conversationIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range conversationIDs {
		g.Go(func() error {
			view, err := s.Get(gctx, id, userID, "")
			if err != nil {
				return err
			}
			views[i] = view
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
