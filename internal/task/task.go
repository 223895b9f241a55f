// Package task moves work out of the request path. Dispatch is
// fire-and-forget with at-most-once delivery: no persistence, no retry,
// no result reported back. Callers must have committed their own state
// before dispatching — a task that never runs only delays convergence.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AdeolaQuadri/groupchat-api/internal/metrics"
)

// handleTimeout bounds a single task execution.
const handleTimeout = time.Minute

// HandlerFunc executes one task from its serialized payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Registry maps operation names to handlers. The same registry backs
// both the in-process dispatcher and the NATS runner, so switching
// transports never touches handler code.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	log      *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{handlers: make(map[string]HandlerFunc), log: log}
}

// Register binds an operation name to a handler. Later registrations
// replace earlier ones.
func (r *Registry) Register(operation string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[operation] = h
}

// Operations returns the registered operation names.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.handlers))
	for op := range r.handlers {
		ops = append(ops, op)
	}
	return ops
}

// Handle executes the handler for an operation. There is no caller to
// report to: failures are logged and counted, then dropped. The task
// runs under its own bounded context, detached from whatever request
// scheduled it.
func (r *Registry) Handle(operation string, payload []byte) {
	r.mu.RLock()
	h, ok := r.handlers[operation]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("no handler for task", "operation", operation)
		metrics.TasksHandledTotal.WithLabelValues(operation, "unknown").Inc()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	if err := h(ctx, payload); err != nil {
		r.log.Error("task failed", "operation", operation, "error", err)
		metrics.TasksHandledTotal.WithLabelValues(operation, "error").Inc()
		return
	}
	metrics.TasksHandledTotal.WithLabelValues(operation, "ok").Inc()
}

// Inline runs dispatched tasks on in-process goroutines. It is the
// fallback when no broker is configured, and what tests wire in.
type Inline struct {
	reg *Registry
	wg  sync.WaitGroup
}

// NewInline returns an Inline dispatcher over the registry.
func NewInline(reg *Registry) *Inline {
	return &Inline{reg: reg}
}

// Dispatch schedules the task on a new goroutine and returns as soon as
// the payload is serialized. The caller's context is deliberately not
// inherited: the task outlives the request that scheduled it.
func (d *Inline) Dispatch(_ context.Context, operation string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("task: encode %s payload: %w", operation, err)
	}
	metrics.TasksDispatchedTotal.WithLabelValues(operation).Inc()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.reg.Handle(operation, data)
	}()
	return nil
}

// Wait blocks until every in-flight task finishes. Shutdown and tests
// use it; nothing else should.
func (d *Inline) Wait() {
	d.wg.Wait()
}
