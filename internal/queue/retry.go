// Package queue holds the redelivery and dead-letter rules shared by every
// NSQ consumer in the engine.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"newsdesk/apps/backend/features/job"
	"newsdesk/apps/backend/internal/metrics"
)

// DeadLetterStore persists messages that ran out of retries.
type DeadLetterStore interface {
	Save(ctx context.Context, j *job.Job) error
}

type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	// Backoff, when set, replaces the fixed Delay. It receives the number of
	// retries already made.
	Backoff func(retries int) time.Duration
}

func (p RetryPolicy) DelayFor(retries int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(retries)
	}
	return p.Delay
}

// MaxAttempts is the nsq consumer setting that lets every retry reach the
// handler, leaving the dead-letter decision to Retrier.
func (p RetryPolicy) MaxAttempts() uint16 {
	return uint16(p.MaxRetries + 2)
}

type Retrier struct {
	Topic  string
	Policy RetryPolicy
	Store  DeadLetterStore
}

// Fail handles a message whose processing returned cause. While the message
// has attempts left it is requeued without nsq's consumer backoff; after that
// it is saved to the dead-letter store. A nil return means the message has
// been responded to.
func (r *Retrier) Fail(ctx context.Context, m *nsq.Message, sourceID string, cause error) error {
	attempts := int(m.Attempts)
	if attempts <= r.Policy.MaxRetries {
		delay := r.Policy.DelayFor(attempts - 1)
		slog.WarnContext(ctx, "task failed, scheduling retry",
			"topic", r.Topic, "source_id", sourceID, "attempt", attempts, "max_retries", r.Policy.MaxRetries,
			"delay", delay, "error", cause)
		metrics.TasksRequeued.WithLabelValues(r.Topic).Inc()
		m.RequeueWithoutBackoff(delay)
		return nil
	}

	slog.ErrorContext(ctx, "task exhausted retries, moving to dead letter",
		"topic", r.Topic, "source_id", sourceID, "attempts", attempts, "error", cause)
	return r.Bury(ctx, sourceID, m.Body, attempts-1, cause)
}

// Bury saves payload to the dead-letter store under the retrier's topic
// without further redelivery.
func (r *Retrier) Bury(ctx context.Context, sourceID string, payload []byte, retries int, cause error) error {
	if r.Store == nil {
		metrics.TasksDeadLettered.WithLabelValues(r.Topic).Inc()
		return nil
	}

	dead := &job.Job{
		SourceID: sourceID,
		Handler:  r.Topic,
		Payload:  payload,
		Error:    cause.Error(),
		Retries:  retries,
	}
	if err := r.Store.Save(ctx, dead); err != nil {
		return fmt.Errorf("save dead letter: %w", err)
	}
	metrics.TasksDeadLettered.WithLabelValues(r.Topic).Inc()
	slog.InfoContext(ctx, "saved dead letter", "job_id", dead.ID, "topic", r.Topic)
	return nil
}

// KeepAlive touches m every interval so nsqd does not time it out while a
// long task runs. The returned func stops the loop.
func KeepAlive(ctx context.Context, m *nsq.Message, every time.Duration) func() {
	if every <= 0 || m.Delegate == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				m.Touch()
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
