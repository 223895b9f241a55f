package chat

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

// Conversations resolves which conversation a set of users share and
// maintains membership rows. There is no conversation document: a
// conversation is its membership rows, and it exists exactly as long
// as it has members.
type Conversations struct {
	users   UserStore
	members MembershipStore
	claims  ClaimStore
	log     *slog.Logger
}

// NewConversations returns a Conversations resolver over the given
// stores.
func NewConversations(users UserStore, members MembershipStore, claims ClaimStore, log *slog.Logger) *Conversations {
	if log == nil {
		log = slog.Default()
	}
	return &Conversations{users: users, members: members, claims: claims, log: log}
}

// Fingerprint derives the stable identity of a participant set: the
// BLAKE2b-256 digest of the sorted ids, NUL-separated so that id
// boundaries cannot be confused. Any ordering of the same set produces
// the same fingerprint.
func Fingerprint(userIDs []string) string {
	ids := append([]string(nil), userIDs...)
	sort.Strings(ids)
	var buf []byte
	for _, id := range ids {
		buf = append(buf, id...)
		buf = append(buf, 0)
	}
	sum := blake2b.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// ListConversationIDs returns the ids of every conversation the user is
// a member of.
func (c *Conversations) ListConversationIDs(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	rows, err := c.members.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ConversationID
	}
	return ids, nil
}

// ListMembers resolves a conversation's member rows to user records,
// fetching them in parallel. Membership rows can outlive their user
// (delete does not cascade), so unresolvable members are skipped with a
// warning rather than failing the whole read. Order is not guaranteed.
func (c *Conversations) ListMembers(ctx context.Context, conversationID string) ([]*data.User, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", ErrInvalidArgument)
	}
	rows, err := c.members.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	resolved := make([]*data.User, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		g.Go(func() error {
			user, err := c.users.GetUserByID(gctx, row.UserID)
			if errors.Is(err, data.ErrNotFound) {
				c.log.Warn("membership references missing user",
					"user_id", row.UserID, "conversation_id", conversationID)
				return nil
			}
			if err != nil {
				return err
			}
			resolved[i] = user
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	members := make([]*data.User, 0, len(resolved))
	for _, user := range resolved {
		if user != nil {
			members = append(members, user)
		}
	}
	return members, nil
}

// FindSharedConversation returns the one conversation all given users
// share, or "" when they share none — or more than one, since an
// ambiguous intersection has no canonical answer either.
func (c *Conversations) FindSharedConversation(ctx context.Context, userIDs []string) (string, error) {
	if len(userIDs) == 0 {
		return "", fmt.Errorf("%w: at least one userId is required", ErrInvalidArgument)
	}

	lists := make([][]string, len(userIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range userIDs {
		g.Go(func() error {
			ids, err := c.ListConversationIDs(gctx, id)
			if err != nil {
				return err
			}
			lists[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	// Per-user lists are duplicate-free (unique membership index), so an
	// id seen len(userIDs) times is in every list.
	seen := make(map[string]int)
	for _, list := range lists {
		for _, id := range list {
			seen[id]++
		}
	}
	var shared []string
	for id, n := range seen {
		if n == len(userIDs) {
			shared = append(shared, id)
		}
	}
	if len(shared) == 1 {
		return shared[0], nil
	}
	return "", nil
}

// Initiate returns the conversation for the participant set
// {initiator} ∪ others, creating it if the set has none yet. Creation
// claims the set's fingerprint first (a conditional single-record
// write, the only atomic primitive available), so two racing initiates
// of the same set converge on one conversation id: the claim loser
// reads the winner's id and returns it. The membership rows themselves
// are then written in parallel without a transaction; a failure midway
// leaves a partially-populated conversation and is reported, not rolled
// back.
func (c *Conversations) Initiate(ctx context.Context, initiatorID string, otherUserIDs []string) (string, error) {
	initiatorID = strings.TrimSpace(initiatorID)
	if initiatorID == "" {
		return "", fmt.Errorf("%w: initiatorId is required", ErrInvalidArgument)
	}
	if len(otherUserIDs) == 0 {
		return "", fmt.Errorf("%w: at least one other participant is required", ErrInvalidArgument)
	}

	set := map[string]bool{initiatorID: true}
	for _, id := range otherUserIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return "", fmt.Errorf("%w: participant ids must not be empty", ErrInvalidArgument)
		}
		if id == initiatorID {
			return "", fmt.Errorf("%w: conversation with oneself is not allowed", ErrInvalidArgument)
		}
		set[id] = true
	}
	participants := make([]string, 0, len(set))
	for id := range set {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	// Every participant must exist; one unknown id fails the whole call.
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range participants {
		g.Go(func() error {
			if _, err := c.users.GetUserByID(gctx, id); err != nil {
				if errors.Is(err, data.ErrNotFound) {
					return fmt.Errorf("%w: user %s", ErrNotFound, id)
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	shared, err := c.FindSharedConversation(ctx, participants)
	if err != nil {
		return "", err
	}
	if shared != "" {
		return shared, nil
	}

	conversationID := uuid.NewString()
	fingerprint := Fingerprint(participants)
	if err := c.claims.Claim(ctx, fingerprint, conversationID); err != nil {
		if errors.Is(err, data.ErrDuplicateKey) {
			claim, err := c.claims.GetClaim(ctx, fingerprint)
			if err != nil {
				return "", err
			}
			c.log.Info("conversation claim lost, reusing winner",
				"conversation_id", claim.ConversationID)
			return claim.ConversationID, nil
		}
		return "", err
	}

	g, gctx = errgroup.WithContext(ctx)
	for _, id := range participants {
		g.Go(func() error {
			err := c.members.AddMember(gctx, id, conversationID)
			// A pre-existing row is fine; the member is there either way.
			if err != nil && !errors.Is(err, data.ErrDuplicateKey) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	c.log.Info("conversation created",
		"conversation_id", conversationID, "participants", len(participants))
	return conversationID, nil
}

// Join adds the user to an existing conversation. The membership check
// runs first for a clean error; the unique index behind AddMember
// catches the check-then-insert race.
func (c *Conversations) Join(ctx context.Context, userID, conversationID string) error {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" || conversationID == "" {
		return fmt.Errorf("%w: userId and conversationId are required", ErrInvalidArgument)
	}

	rows, err := c.members.ListByConversation(ctx, conversationID)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.UserID == userID {
			return fmt.Errorf("%w: user %s in conversation %s", ErrAlreadyMember, userID, conversationID)
		}
	}

	if err := c.members.AddMember(ctx, userID, conversationID); err != nil {
		if errors.Is(err, data.ErrDuplicateKey) {
			return fmt.Errorf("%w: user %s in conversation %s", ErrAlreadyMember, userID, conversationID)
		}
		return err
	}
	c.log.Info("member joined", "user_id", userID, "conversation_id", conversationID)
	return nil
}

// Leave removes the user from a conversation. The delete's affected-row
// count is the membership check, so there is no race window between
// checking and removing.
func (c *Conversations) Leave(ctx context.Context, userID, conversationID string) error {
	userID = strings.TrimSpace(userID)
	conversationID = strings.TrimSpace(conversationID)
	if userID == "" || conversationID == "" {
		return fmt.Errorf("%w: userId and conversationId are required", ErrInvalidArgument)
	}

	err := c.members.RemoveMember(ctx, userID, conversationID)
	if errors.Is(err, data.ErrNotFound) {
		return fmt.Errorf("%w: user %s in conversation %s", ErrNotMember, userID, conversationID)
	}
	if err != nil {
		return err
	}
	c.log.Info("member left", "user_id", userID, "conversation_id", conversationID)
	return nil
}
