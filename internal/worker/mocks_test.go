package worker_test

import (
	"context"
	"os"

	"github.com/stretchr/testify/mock"

	"newsdesk/apps/backend/features/job"
	"newsdesk/apps/backend/internal/notify"
	"newsdesk/apps/backend/internal/pipeline"
)

type MockProcessor struct{ mock.Mock }

func (m *MockProcessor) ProcessPDF(ctx context.Context, taskID string, doc pipeline.Document) (*pipeline.Response, error) {
	args := m.Called(ctx, taskID, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Response), args.Error(1)
}

func (m *MockProcessor) ProcessImages(ctx context.Context, taskID string, doc pipeline.Document) (*pipeline.Response, error) {
	args := m.Called(ctx, taskID, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Response), args.Error(1)
}

func (m *MockProcessor) ProcessText(ctx context.Context, taskID string, doc pipeline.TextDocument) (*pipeline.TextResponse, error) {
	args := m.Called(ctx, taskID, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.TextResponse), args.Error(1)
}

// MockObjects writes a placeholder PDF on Download so the consumer sees a
// real file.
type MockObjects struct{ mock.Mock }

func (m *MockObjects) Download(ctx context.Context, bucket, key, dst string) error {
	args := m.Called(ctx, bucket, key, dst)
	if err := args.Error(0); err != nil {
		return err
	}
	return os.WriteFile(dst, []byte("%PDF-1.4"), 0o644)
}

func (m *MockObjects) Fetch(ctx context.Context, s3URL string) ([]byte, error) {
	args := m.Called(ctx, s3URL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
	URL string
}

func (m *MockNotifier) Enabled() bool { return m.URL != "" }

func (m *MockNotifier) Message(ctx context.Context, taskID string, payload notify.Payload) notify.Message {
	return notify.Message{SourceTaskID: taskID, URL: m.URL, Payload: payload}
}

func (m *MockNotifier) Enqueue(ctx context.Context, taskID string, payload notify.Payload) error {
	args := m.Called(ctx, taskID, payload)
	return args.Error(0)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Save(ctx context.Context, j *job.Job) error {
	args := m.Called(ctx, j)
	return args.Error(0)
}
