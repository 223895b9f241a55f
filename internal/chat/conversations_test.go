package chat

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
)

func newTestConversations(users *fakeUsers, members *fakeMemberships, claims *fakeClaims) *Conversations {
	return NewConversations(users, members, claims, testLogger())
}

func seedUsers(ids ...string) *fakeUsers {
	f := newFakeUsers()
	for _, id := range ids {
		f.users[id] = &data.User{ID: id, DisplayName: id}
	}
	return f
}

func TestFingerprintIgnoresOrder(t *testing.T) {
	a := Fingerprint([]string{"alice", "bob", "carol"})
	b := Fingerprint([]string{"carol", "alice", "bob"})
	if a != b {
		t.Fatalf("fingerprint depends on order: %s vs %s", a, b)
	}
	if a == Fingerprint([]string{"alice", "bob"}) {
		t.Fatal("different sets share a fingerprint")
	}
	// id boundaries must matter: {"ab","c"} is not {"a","bc"}
	if Fingerprint([]string{"ab", "c"}) == Fingerprint([]string{"a", "bc"}) {
		t.Fatal("fingerprint confuses id boundaries")
	}
}

func TestInitiateCreatesMemberships(t *testing.T) {
	users := seedUsers("alice", "bob", "carol")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	id, err := c.Initiate(ctx, "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if id == "" {
		t.Fatal("Initiate returned empty conversation id")
	}

	got, err := c.ListMembers(ctx, id)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	ids := make([]string, len(got))
	for i, u := range got {
		ids[i] = u.ID
	}
	slices.Sort(ids)
	want := []string{"alice", "bob", "carol"}
	if !slices.Equal(ids, want) {
		t.Fatalf("members = %v, want %v", ids, want)
	}

	// the initiator sees the conversation too
	convs, err := c.ListConversationIDs(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversationIDs failed: %v", err)
	}
	if !slices.Contains(convs, id) {
		t.Fatalf("initiator's conversations %v missing %s", convs, id)
	}
}

func TestInitiateValidation(t *testing.T) {
	users := seedUsers("alice", "bob")
	c := newTestConversations(users, &fakeMemberships{}, newFakeClaims())
	ctx := context.Background()

	if _, err := c.Initiate(ctx, "alice", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for no participants, got %v", err)
	}
	if _, err := c.Initiate(ctx, "alice", []string{"alice"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for self-conversation, got %v", err)
	}
	if _, err := c.Initiate(ctx, "alice", []string{""}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty participant id, got %v", err)
	}
	if _, err := c.Initiate(ctx, "alice", []string{"ghost"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown participant, got %v", err)
	}
}

func TestInitiateDeduplicatesParticipants(t *testing.T) {
	users := seedUsers("alice", "bob")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	id, err := c.Initiate(ctx, "alice", []string{"bob", "bob"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	rows, err := members.ListByConversation(ctx, id)
	if err != nil {
		t.Fatalf("ListByConversation failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 membership rows, got %d", len(rows))
	}
}

func TestInitiateTwiceReturnsSameConversation(t *testing.T) {
	users := seedUsers("alice", "bob")
	c := newTestConversations(users, &fakeMemberships{}, newFakeClaims())
	ctx := context.Background()

	first, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("first Initiate failed: %v", err)
	}
	second, err := c.Initiate(ctx, "bob", []string{"alice"})
	if err != nil {
		t.Fatalf("second Initiate failed: %v", err)
	}
	if first != second {
		t.Fatalf("same participant set produced two conversations: %s vs %s", first, second)
	}
}

func TestInitiateLostClaimRaceReusesWinner(t *testing.T) {
	users := seedUsers("alice", "bob")
	claims := newFakeClaims()
	c := newTestConversations(users, &fakeMemberships{}, claims)
	ctx := context.Background()

	// another initiator claimed the set first but has not written its
	// membership rows yet, so the intersection search finds nothing
	fp := Fingerprint([]string{"alice", "bob"})
	if err := claims.Claim(ctx, fp, "conv-winner"); err != nil {
		t.Fatalf("seeding claim failed: %v", err)
	}

	id, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if id != "conv-winner" {
		t.Fatalf("claim loser minted its own conversation %s, want conv-winner", id)
	}
}

func TestInitiateMatchesSupersetConversation(t *testing.T) {
	// the shared-conversation search is an intersection: a group that
	// contains both users counts as their shared conversation
	users := seedUsers("alice", "bob", "carol")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	group, err := c.Initiate(ctx, "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("group Initiate failed: %v", err)
	}

	pair, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("pair Initiate failed: %v", err)
	}
	if pair != group {
		t.Fatalf("expected the existing group %s, got %s", group, pair)
	}
}

func TestInitiateAmbiguousIntersectionCreatesNew(t *testing.T) {
	users := seedUsers("alice", "bob", "carol", "dave")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	// two distinct conversations both containing alice and bob
	first, err := c.Initiate(ctx, "alice", []string{"bob", "carol"})
	if err != nil {
		t.Fatalf("first Initiate failed: %v", err)
	}
	second, err := c.Initiate(ctx, "alice", []string{"bob", "dave"})
	if err != nil {
		t.Fatalf("second Initiate failed: %v", err)
	}

	// zero or many shared conversations both mean "no canonical one"
	pair, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("pair Initiate failed: %v", err)
	}
	if pair == first || pair == second {
		t.Fatalf("ambiguous intersection must mint a new conversation, reused %s", pair)
	}
}

func TestFindSharedConversation(t *testing.T) {
	users := seedUsers("alice", "bob", "carol")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	id, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	shared, err := c.FindSharedConversation(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("FindSharedConversation failed: %v", err)
	}
	if shared != id {
		t.Fatalf("shared = %q, want %q", shared, id)
	}

	shared, err = c.FindSharedConversation(ctx, []string{"alice", "carol"})
	if err != nil {
		t.Fatalf("FindSharedConversation (none) failed: %v", err)
	}
	if shared != "" {
		t.Fatalf("expected no shared conversation, got %q", shared)
	}
}

func TestJoinAndLeave(t *testing.T) {
	users := seedUsers("alice", "bob", "carol")
	c := newTestConversations(users, &fakeMemberships{}, newFakeClaims())
	ctx := context.Background()

	id, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	if err := c.Join(ctx, "carol", id); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if err := c.Join(ctx, "carol", id); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember on rejoin, got %v", err)
	}

	if err := c.Leave(ctx, "carol", id); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if err := c.Leave(ctx, "carol", id); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember on second leave, got %v", err)
	}

	convs, err := c.ListConversationIDs(ctx, "carol")
	if err != nil {
		t.Fatalf("ListConversationIDs failed: %v", err)
	}
	if slices.Contains(convs, id) {
		t.Fatalf("carol still lists %s after leaving", id)
	}
}

func TestListMembersSkipsOrphanedRows(t *testing.T) {
	users := seedUsers("alice", "bob")
	members := &fakeMemberships{}
	c := newTestConversations(users, members, newFakeClaims())
	ctx := context.Background()

	id, err := c.Initiate(ctx, "alice", []string{"bob"})
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	// bob's record disappears but his membership row stays (delete does
	// not cascade)
	if err := users.DeleteUser(ctx, "bob"); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	got, err := c.ListMembers(ctx, id)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "alice" {
		t.Fatalf("expected only alice, got %+v", got)
	}
}
