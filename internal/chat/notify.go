package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
	"github.com/AdeolaQuadri/groupchat-api/internal/push"
)

// GatewayFactory acquires a push gateway for the duration of one
// fan-out. The returned release func runs on every exit path; the
// notifier never retains the gateway between calls.
type GatewayFactory func(ctx context.Context) (push.Gateway, func(), error)

// Notifier fans a posted message out to the other members' devices.
// Delivery is best-effort: members without a device token are skipped
// with a warning, individual gateway failures are logged and counted
// but never escalate, and the call waits for every send before
// returning so no outcome is silently abandoned. Only the degenerate
// case is reported, as ErrMissingToken: recipients exist but not one
// of them has a token.
type Notifier struct {
	resolver ConversationResolver
	gateway  GatewayFactory
	log      *slog.Logger
}

// NewNotifier returns a Notifier resolving members through resolver and
// sending through gateways from factory.
func NewNotifier(resolver ConversationResolver, gateway GatewayFactory, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{resolver: resolver, gateway: gateway, log: log}
}

// Notify pushes the message text to every current member except the
// sender.
func (n *Notifier) Notify(ctx context.Context, conversationID, senderID, text string) error {
	conversationID = strings.TrimSpace(conversationID)
	senderID = strings.TrimSpace(senderID)
	if conversationID == "" || senderID == "" {
		return fmt.Errorf("%w: conversationId and senderId are required", ErrInvalidArgument)
	}

	members, err := n.resolver.ListMembers(ctx, conversationID)
	if err != nil {
		return err
	}

	// The sender is normally still a member; their record supplies the
	// snapshot in the payload. If they left in the meantime the payload
	// carries the bare id.
	sender := data.SenderSnapshot{UserID: senderID}
	var recipients []*data.User
	skipped := 0
	for _, m := range members {
		if m.ID == senderID {
			sender = m.Snapshot()
			continue
		}
		if m.FCMToken == "" {
			skipped++
			n.log.Warn("member has no device token, skipping",
				"user_id", m.ID, "conversation_id", conversationID)
			continue
		}
		recipients = append(recipients, m)
	}
	if len(recipients) == 0 {
		if skipped > 0 {
			return fmt.Errorf("%w: conversation %s", ErrMissingToken, conversationID)
		}
		// Nobody to notify at all, e.g. every other member left.
		return nil
	}

	gw, release, err := n.gateway(ctx)
	if err != nil {
		return err
	}
	defer release()

	note := push.Notification{
		ConversationID: conversationID,
		Sender:         sender,
		Message:        text,
	}

	var failed atomic.Int64
	var wg sync.WaitGroup
	for _, r := range recipients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := gw.Send(ctx, r.FCMToken, note); err != nil {
				failed.Add(1)
				metrics.PushSendsTotal.WithLabelValues("failed").Inc()
				if errors.Is(err, push.ErrInvalidToken) {
					n.log.Warn("push token rejected", "user_id", r.ID, "error", err)
				} else {
					n.log.Warn("push send failed", "user_id", r.ID, "error", err)
				}
				return
			}
			metrics.PushSendsTotal.WithLabelValues("ok").Inc()
		}()
	}
	wg.Wait()

	n.log.Info("push fan-out complete",
		"conversation_id", conversationID,
		"recipients", len(recipients),
		"failed", failed.Load(),
		"skipped", skipped)
	return nil
}
