package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/AdeolaQuadri/groupchat-api/internal/data"
	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
)

// repairConcurrency bounds parallel snapshot rewrites; a user with a
// long history should not flood the database.
const repairConcurrency = 8

// Repairer re-propagates a profile change into the sender snapshots of
// the user's historical messages. It runs out-of-band from the update
// that scheduled it, so snapshots become consistent with the live
// record eventually rather than immediately.
type Repairer struct {
	users    UserStore
	messages MessageStore
	history  HistoryService
	log      *slog.Logger
}

// NewRepairer returns a Repairer over the given collaborators.
func NewRepairer(users UserStore, messages MessageStore, history HistoryService, log *slog.Logger) *Repairer {
	if log == nil {
		log = slog.Default()
	}
	return &Repairer{users: users, messages: messages, history: history, log: log}
}

// RepairSenderSnapshots rewrites the sender snapshot of every message
// the user posted, in every conversation they are in, to the user's
// current profile. Each rewrite is conditional on the stored sender
// still being this user; a miss means a concurrent repair or delete got
// there first and is not an error. Returns how many messages were
// rewritten.
func (r *Repairer) RepairSenderSnapshots(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if errors.Is(err, data.ErrNotFound) {
		// Deleted since the task was scheduled; old snapshots stay as
		// they were.
		r.log.Info("snapshot repair skipped, user gone", "user_id", userID)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	snap := user.Snapshot()

	views, err := r.history.History(ctx, userID)
	if err != nil {
		return 0, err
	}

	var repaired atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(repairConcurrency)
	for _, view := range views {
		for _, msg := range view.Messages {
			if msg.Sender.UserID != userID {
				continue
			}
			g.Go(func() error {
				ok, err := r.messages.UpdateSender(gctx, msg.ConversationID, msg.Timestamp, userID, snap)
				if err != nil {
					return err
				}
				if ok {
					repaired.Add(1)
					metrics.SnapshotRepairsTotal.Inc()
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return int(repaired.Load()), err
	}

	r.log.Info("sender snapshots repaired",
		"user_id", userID, "messages", repaired.Load())
	return int(repaired.Load()), nil
}
