package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/queue"
)

type Deliverer interface {
	Deliver(ctx context.Context, url string, payload Payload) error
}

type Consumer struct {
	client  Deliverer
	retrier *queue.Retrier
}

// NewConsumer builds the notify topic handler. Failed deliveries are
// redelivered after Backoff(baseDelay, retries) up to maxRetries times.
func NewConsumer(client Deliverer, store queue.DeadLetterStore, baseDelay time.Duration, maxRetries int) *Consumer {
	return &Consumer{
		client: client,
		retrier: &queue.Retrier{
			Topic: config.TopicNotify,
			Policy: queue.RetryPolicy{
				MaxRetries: maxRetries,
				Backoff:    func(n int) time.Duration { return Backoff(baseDelay, n) },
			},
			Store: store,
		},
	}
}

func (c *Consumer) Policy() queue.RetryPolicy {
	return c.retrier.Policy
}

// Timeout is zero: a delivery is bounded by the HTTP client, well inside
// nsq's default msg timeout.
func (c *Consumer) Timeout() time.Duration {
	return 0
}

func (c *Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var msg Message
	err := json.Unmarshal(m.Body, &msg)

	correlationID := msg.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := middleware.WithCorrelationID(context.Background(), correlationID)
	if msg.SourceTaskID != "" {
		ctx = middleware.WithTaskID(ctx, msg.SourceTaskID)
	}

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid notification", "error", err)
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return nil
	}
	if msg.URL == "" {
		slog.WarnContext(ctx, "notification without url, dropping")
		metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
		return nil
	}

	if err := c.client.Deliver(ctx, msg.URL, msg.Payload); err != nil {
		if int(m.Attempts) <= c.retrier.Policy.MaxRetries {
			metrics.NotificationsTotal.WithLabelValues("retried").Inc()
		} else {
			metrics.NotificationsTotal.WithLabelValues("dead_lettered").Inc()
		}
		return c.retrier.Fail(ctx, m, msg.SourceTaskID, err)
	}

	metrics.NotificationsTotal.WithLabelValues("delivered").Inc()
	slog.InfoContext(ctx, "notification delivered", "articles", len(msg.Payload.Articles), "attempt", m.Attempts)
	return nil
}
