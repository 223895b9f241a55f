package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdeolaQuadri/groupchat-api/internal/auth"
	"github.com/AdeolaQuadri/groupchat-api/internal/chat"
	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/middleware"
)

// Handler tests substitute function-backed fakes for the chat services.
// A nil function means the test does not expect that call; hitting it
// returns errUnexpectedCall, which surfaces as a 503 and fails any
// assertion on the intended status.

var errUnexpectedCall = errors.New("unexpected service call")

type fakeDirectory struct {
	registerEmail func(userID, email, displayName, fcmToken string) (*data.User, error)
	registerPhone func(userID, phone, displayName, fcmToken string) (*data.User, error)
	lookupEmail   func(email string) (*data.User, error)
	lookupPhone   func(phone string) (*data.User, error)
	get           func(userID string) (*data.User, error)
	update        func(userID string, patch data.UserPatch) (*data.User, error)
	remove        func(userID string) error
}

func (f *fakeDirectory) RegisterWithEmail(_ context.Context, userID, email, displayName, fcmToken string) (*data.User, error) {
	if f.registerEmail == nil {
		return nil, errUnexpectedCall
	}
	return f.registerEmail(userID, email, displayName, fcmToken)
}

func (f *fakeDirectory) RegisterWithPhone(_ context.Context, userID, phone, displayName, fcmToken string) (*data.User, error) {
	if f.registerPhone == nil {
		return nil, errUnexpectedCall
	}
	return f.registerPhone(userID, phone, displayName, fcmToken)
}

func (f *fakeDirectory) LookupByEmail(_ context.Context, email string) (*data.User, error) {
	if f.lookupEmail == nil {
		return nil, errUnexpectedCall
	}
	return f.lookupEmail(email)
}

func (f *fakeDirectory) LookupByPhone(_ context.Context, phone string) (*data.User, error) {
	if f.lookupPhone == nil {
		return nil, errUnexpectedCall
	}
	return f.lookupPhone(phone)
}

func (f *fakeDirectory) Get(_ context.Context, userID string) (*data.User, error) {
	if f.get == nil {
		return nil, errUnexpectedCall
	}
	return f.get(userID)
}

func (f *fakeDirectory) Update(_ context.Context, userID string, patch data.UserPatch) (*data.User, error) {
	if f.update == nil {
		return nil, errUnexpectedCall
	}
	return f.update(userID, patch)
}

func (f *fakeDirectory) Delete(_ context.Context, userID string) error {
	if f.remove == nil {
		return errUnexpectedCall
	}
	return f.remove(userID)
}

type fakeConversations struct {
	list     func(userID string) ([]string, error)
	members  func(conversationID string) ([]*data.User, error)
	initiate func(initiatorID string, otherUserIDs []string) (string, error)
	join     func(userID, conversationID string) error
	leave    func(userID, conversationID string) error
}

func (f *fakeConversations) ListConversationIDs(_ context.Context, userID string) ([]string, error) {
	if f.list == nil {
		return nil, errUnexpectedCall
	}
	return f.list(userID)
}

func (f *fakeConversations) ListMembers(_ context.Context, conversationID string) ([]*data.User, error) {
	if f.members == nil {
		return nil, errUnexpectedCall
	}
	return f.members(conversationID)
}

func (f *fakeConversations) Initiate(_ context.Context, initiatorID string, otherUserIDs []string) (string, error) {
	if f.initiate == nil {
		return "", errUnexpectedCall
	}
	return f.initiate(initiatorID, otherUserIDs)
}

func (f *fakeConversations) Join(_ context.Context, userID, conversationID string) error {
	if f.join == nil {
		return errUnexpectedCall
	}
	return f.join(userID, conversationID)
}

func (f *fakeConversations) Leave(_ context.Context, userID, conversationID string) error {
	if f.leave == nil {
		return errUnexpectedCall
	}
	return f.leave(userID, conversationID)
}

type fakeMessages struct {
	post    func(senderID, conversationID, text string, notify bool) (*data.Message, error)
	get     func(conversationID, requesterID, since string) (*chat.ConversationView, error)
	history func(userID string) ([]*chat.ConversationView, error)
}

func (f *fakeMessages) Post(_ context.Context, senderID, conversationID, text string, notify bool) (*data.Message, error) {
	if f.post == nil {
		return nil, errUnexpectedCall
	}
	return f.post(senderID, conversationID, text, notify)
}

func (f *fakeMessages) Get(_ context.Context, conversationID, requesterID, since string) (*chat.ConversationView, error) {
	if f.get == nil {
		return nil, errUnexpectedCall
	}
	return f.get(conversationID, requesterID, since)
}

func (f *fakeMessages) History(_ context.Context, userID string) ([]*chat.ConversationView, error) {
	if f.history == nil {
		return nil, errUnexpectedCall
	}
	return f.history(userID)
}

type fakeNotifier struct {
	notify func(conversationID, senderID, text string) error
}

func (f *fakeNotifier) Notify(_ context.Context, conversationID, senderID, text string) error {
	if f.notify == nil {
		return errUnexpectedCall
	}
	return f.notify(conversationID, senderID, text)
}

type fakeRepairer struct {
	repair func(userID string) (int, error)
}

func (f *fakeRepairer) RepairSenderSnapshots(_ context.Context, userID string) (int, error) {
	if f.repair == nil {
		return 0, errUnexpectedCall
	}
	return f.repair(userID)
}

// services bundles the fakes a test cares about; unset ones default to
// empty fakes that reject every call.
type services struct {
	directory     *fakeDirectory
	conversations *fakeConversations
	messages      *fakeMessages
	notifier      *fakeNotifier
	repairer      *fakeRepairer
}

const testJWTSecret = "handler-test-secret"

var testJWT = auth.NewJWTManager(testJWTSecret, time.Hour)

func newTestServer(t *testing.T, svc services) *Server {
	t.Helper()
	if svc.directory == nil {
		svc.directory = &fakeDirectory{}
	}
	if svc.conversations == nil {
		svc.conversations = &fakeConversations{}
	}
	if svc.messages == nil {
		svc.messages = &fakeMessages{}
	}
	if svc.notifier == nil {
		svc.notifier = &fakeNotifier{}
	}
	if svc.repairer == nil {
		svc.repairer = &fakeRepairer{}
	}

	// Generous limits so only the dedicated rate-limit test trips them.
	limiter := middleware.NewLimiterStore(600, 100, time.Minute)
	t.Cleanup(limiter.Stop)

	return newServer(
		testJWT,
		svc.directory,
		svc.conversations,
		svc.messages,
		svc.notifier,
		svc.repairer,
		limiter,
		slog.New(slog.DiscardHandler),
	)
}

// tokenFor mints a token with the shared test secret, the same way the
// identity provider would.
func tokenFor(t *testing.T, id auth.Identity) string {
	t.Helper()
	token, _, err := testJWT.GenerateToken(id)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	return token
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
}
