package job

import (
	"context"
	"log/slog"
	"time"
)

type EventPublisher interface {
	Publish(topic string, body []byte) error
}

type Service struct {
	repo           Repository
	pub            EventPublisher
	logger         *slog.Logger
	publishTimeout time.Duration
}

func NewService(repo Repository, pub EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pub: pub, logger: logger, publishTimeout: 5 * time.Second}
}

// SetPublishTimeout bounds how long Retry waits on the broker.
func (s *Service) SetPublishTimeout(d time.Duration) {
	s.publishTimeout = d
}

func (s *Service) Save(ctx context.Context, j *Job) error {
	return s.repo.Save(ctx, j)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Job, error) {
	return s.repo.List(ctx, f)
}

// Retry republishes the dead letter to the topic it failed on and removes it.
// The record is kept when publishing fails.
func (s *Service) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.pub == nil {
		return nil, ErrNoPublisher
	}

	done := make(chan error, 1)
	go func() {
		done <- s.pub.Publish(job.Handler, job.Payload)
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, err
		}
	case <-time.After(s.publishTimeout):
		return nil, ErrPublishTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.logger.InfoContext(ctx, "dead letter republished", "id", id, "topic", job.Handler, "source_id", job.SourceID)
	if err := s.repo.Delete(ctx, id); err != nil {
		return nil, err
	}
	return job, nil
}

// Discard drops a dead letter for good.
func (s *Service) Discard(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "dead letter discarded", "id", id)
	return nil
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) CountByHandler(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByHandler(ctx)
}
