package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/middleware"
)

var ErrMissingURL = errors.New("notification url not configured")

type Publisher interface {
	Publish(topic string, body []byte) error
}

// Message is the queued form of a pending delivery.
type Message struct {
	SourceTaskID  string  `json:"source_task_id"`
	URL           string  `json:"url"`
	Payload       Payload `json:"payload"`
	CorrelationID string  `json:"correlation_id,omitempty"`
}

type Enqueuer struct {
	pub Publisher
	url string
}

func NewEnqueuer(pub Publisher, url string) *Enqueuer {
	return &Enqueuer{pub: pub, url: url}
}

// Enabled reports whether a receiver URL is configured.
func (e *Enqueuer) Enabled() bool {
	return e != nil && e.url != ""
}

// Message builds the queued form of payload without publishing it.
func (e *Enqueuer) Message(ctx context.Context, taskID string, payload Payload) Message {
	msg := Message{SourceTaskID: taskID, Payload: payload, CorrelationID: middleware.GetCorrelationID(ctx)}
	if e != nil {
		msg.URL = e.url
	}
	return msg
}

// Enqueue hands payload to the notify topic on behalf of taskID.
func (e *Enqueuer) Enqueue(ctx context.Context, taskID string, payload Payload) error {
	if !e.Enabled() {
		return ErrMissingURL
	}
	body, err := json.Marshal(e.Message(ctx, taskID, payload))
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := e.pub.Publish(config.TopicNotify, body); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	slog.InfoContext(ctx, "notification queued", "task_id", taskID, "articles", len(payload.Articles))
	return nil
}
