package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
)

// subjectPrefix namespaces task subjects on the shared NATS server.
const subjectPrefix = "tasks."

func subject(operation string) string {
	return subjectPrefix + operation
}

// NATS dispatches tasks by publishing them to core NATS subjects. Core
// pub/sub keeps the documented contract honest: if no runner is
// subscribed when the message lands, the task is gone.
type NATS struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATS returns a dispatcher publishing on the given connection.
func NewNATS(nc *nats.Conn, log *slog.Logger) *NATS {
	if log == nil {
		log = slog.Default()
	}
	return &NATS{nc: nc, log: log}
}

// Dispatch publishes the payload to the operation's subject.
func (n *NATS) Dispatch(_ context.Context, operation string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("task: encode %s payload: %w", operation, err)
	}
	if err := n.nc.Publish(subject(operation), data); err != nil {
		return fmt.Errorf("task: publish %s: %w", operation, err)
	}
	metrics.TasksDispatchedTotal.WithLabelValues(operation).Inc()
	n.log.Debug("task dispatched", "operation", operation)
	return nil
}

// Runner consumes task subjects and feeds payloads to the registry.
type Runner struct {
	nc   *nats.Conn
	reg  *Registry
	log  *slog.Logger
	subs []*nats.Subscription
}

// NewRunner returns a Runner executing the registry's handlers.
func NewRunner(nc *nats.Conn, reg *Registry, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{nc: nc, reg: reg, log: log}
}

// Start subscribes to one subject per registered operation. Register
// every handler before calling Start.
func (r *Runner) Start() error {
	for _, op := range r.reg.Operations() {
		sub, err := r.nc.Subscribe(subject(op), func(msg *nats.Msg) {
			r.reg.Handle(op, msg.Data)
		})
		if err != nil {
			r.Stop()
			return fmt.Errorf("task: subscribe %s: %w", op, err)
		}
		r.subs = append(r.subs, sub)
		r.log.Info("task runner subscribed", "operation", op)
	}
	return nil
}

// Stop drops every subscription. In-flight handlers finish on their
// own; new messages are no longer delivered.
func (r *Runner) Stop() {
	for _, sub := range r.subs {
		if err := sub.Unsubscribe(); err != nil {
			r.log.Warn("unsubscribe failed", "subject", sub.Subject, "error", err)
		}
	}
	r.subs = nil
}
