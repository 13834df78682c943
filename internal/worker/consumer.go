// Package worker holds the NSQ handlers that feed queued tasks into the
// pipeline.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/notify"
	"newsdesk/apps/backend/internal/queue"
)

// DefaultTouchInterval stays well under nsqd's default 60s msg timeout.
const DefaultTouchInterval = 30 * time.Second

type Options struct {
	Retry queue.RetryPolicy
	// Timeout bounds one delivery attempt. Zero means no deadline.
	Timeout       time.Duration
	TouchInterval time.Duration
	TempDir       string
	Clock         func() time.Time
}

// base carries what every task consumer shares: the retry rule for its
// topic and the notification hand-off.
type base struct {
	retrier    *queue.Retrier
	notifyDead *queue.Retrier
	notifier   NotificationQueue
	opts       Options
}

func newBase(topic string, store queue.DeadLetterStore, notifier NotificationQueue, opts Options) base {
	if opts.TouchInterval == 0 {
		opts.TouchInterval = DefaultTouchInterval
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return base{
		retrier:    &queue.Retrier{Topic: topic, Policy: opts.Retry, Store: store},
		notifyDead: &queue.Retrier{Topic: config.TopicNotify, Store: store},
		notifier:   notifier,
		opts:       opts,
	}
}

// Policy is used to size the nsq consumer's MaxAttempts.
func (b *base) Policy() queue.RetryPolicy {
	return b.retrier.Policy
}

// Timeout is the per-attempt deadline, used to size the nsq msg timeout.
func (b *base) Timeout() time.Duration {
	return b.opts.Timeout
}

// begin builds the per-message context and keeps m alive while it is
// processed. The returned func must be called once the handler is done.
func (b *base) begin(m *nsq.Message, taskID, correlationID string) (context.Context, string, func()) {
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	if taskID == "" {
		taskID = string(m.ID[:])
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)
	ctx = middleware.WithTaskID(ctx, taskID)

	cancel := context.CancelFunc(func() {})
	if b.opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
	}
	stop := queue.KeepAlive(ctx, m, b.opts.TouchInterval)
	return ctx, taskID, func() {
		stop()
		cancel()
	}
}

// fail runs the retry rule on a context that survives the attempt deadline,
// so a timed-out task can still reach the dead-letter store.
func (b *base) fail(ctx context.Context, m *nsq.Message, taskID string, err error) error {
	return b.retrier.Fail(context.WithoutCancel(ctx), m, taskID, err)
}

// bury dead-letters m immediately. Used for tasks that cannot succeed on
// redelivery.
func (b *base) bury(ctx context.Context, m *nsq.Message, taskID string, err error) error {
	slog.ErrorContext(ctx, "task cannot be processed, moving to dead letter", "error", err)
	return b.retrier.Bury(context.WithoutCancel(ctx), taskID, m.Body, int(m.Attempts)-1, err)
}

// enqueue hands payload to the notify topic. When the producer is down the
// pending delivery is dead-lettered under the notify topic so the finished
// pipeline work is not repeated.
func (b *base) enqueue(ctx context.Context, taskID string, payload *notify.Payload) error {
	if payload == nil || b.notifier == nil || !b.notifier.Enabled() {
		return nil
	}
	err := b.notifier.Enqueue(ctx, taskID, *payload)
	if err == nil {
		return nil
	}
	slog.ErrorContext(ctx, "failed to queue notification", "error", err)

	body, mErr := json.Marshal(b.notifier.Message(ctx, taskID, *payload))
	if mErr != nil {
		return fmt.Errorf("encode notification: %w", mErr)
	}
	return b.notifyDead.Bury(context.WithoutCancel(ctx), taskID, body, 0, err)
}
