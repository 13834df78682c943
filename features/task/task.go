// Package task accepts work over HTTP and places it on the engine's queues.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/worker"
)

var (
	ErrMissingField  = errors.New("missing required field")
	ErrNoObjectStore = errors.New("object storage not configured")
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

// ObjectStore is satisfied by *storage.MinioStore.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type Accepted struct {
	TaskID      string `json:"task_id"`
	Topic       string `json:"topic"`
	ProgressURL string `json:"progress_url"`
}

type Service struct {
	pub     EventPublisher
	objects ObjectStore
}

// NewService builds the submission service. objects may be nil, in which
// case uploads are refused.
func NewService(pub EventPublisher, objects ObjectStore) *Service {
	return &Service{pub: pub, objects: objects}
}

func (s *Service) SubmitDocument(ctx context.Context, t worker.DocumentTask) (*Accepted, error) {
	if t.S3Key == "" {
		return nil, fmt.Errorf("%w: s3_key", ErrMissingField)
	}
	t.TaskID = taskID(t.TaskID)
	t.CorrelationID = middleware.GetCorrelationID(ctx)
	return s.publish(ctx, config.TopicProcessDocument, t.TaskID, t)
}

func (s *Service) SubmitImages(ctx context.Context, t worker.ImagesTask) (*Accepted, error) {
	if t.ImageDir == "" {
		return nil, fmt.Errorf("%w: image_dir", ErrMissingField)
	}
	t.TaskID = taskID(t.TaskID)
	t.CorrelationID = middleware.GetCorrelationID(ctx)
	return s.publish(ctx, config.TopicProcessImages, t.TaskID, t)
}

func (s *Service) SubmitDigital(ctx context.Context, t worker.DigitalRawTask) (*Accepted, error) {
	if t.Content == "" {
		return nil, fmt.Errorf("%w: content", ErrMissingField)
	}
	t.TaskID = taskID(t.TaskID)
	t.CorrelationID = middleware.GetCorrelationID(ctx)
	return s.publish(ctx, config.TopicDigitalRaw, t.TaskID, t)
}

// Upload stores a PDF under key and queues it as a document task.
func (s *Service) Upload(ctx context.Context, key string, r io.Reader, size int64, t worker.DocumentTask) (*Accepted, error) {
	if s.objects == nil {
		return nil, ErrNoObjectStore
	}
	if _, err := s.objects.Put(ctx, key, r, size, "application/pdf"); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	slog.InfoContext(ctx, "stored uploaded document", "key", key, "size", size)
	t.S3Key = key
	t.Bucket = ""
	return s.SubmitDocument(ctx, t)
}

func (s *Service) publish(ctx context.Context, topic, id string, body any) (*Accepted, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := s.pub.Publish(topic, payload); err != nil {
		slog.ErrorContext(ctx, "failed to publish task", "topic", topic, "task_id", id, "error", err)
		return nil, fmt.Errorf("publish %s: %w", topic, err)
	}
	slog.InfoContext(ctx, "published task", "topic", topic, "task_id", id)
	return &Accepted{TaskID: id, Topic: topic, ProgressURL: "/tasks/" + id + "/progress"}, nil
}

func taskID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
