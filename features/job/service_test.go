package job

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowPublisher struct {
	sleep     time.Duration
	LastTopic string
}

func (m *slowPublisher) Publish(topic string, body []byte) error {
	m.LastTopic = topic
	time.Sleep(m.sleep)
	return nil
}

type stubRepo struct {
	Repository
	deleted []string
}

func (m *stubRepo) Get(ctx context.Context, id string) (*Job, error) {
	return &Job{ID: id, Handler: "ocr.digital.s3", Payload: []byte("{}")}, nil
}

func (m *stubRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *stubRepo) Count(ctx context.Context) (int, error) { return 10, nil }

func TestRetry_Timeout(t *testing.T) {
	repo := &stubRepo{}
	pub := &slowPublisher{sleep: 200 * time.Millisecond}
	service := NewService(repo, pub, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	service.SetPublishTimeout(20 * time.Millisecond)

	_, err := service.Retry(context.Background(), "1")
	assert.ErrorIs(t, err, ErrPublishTimeout)
	assert.Empty(t, repo.deleted, "record must survive a failed republish")
}

func TestRetry_PublishesToOriginTopic(t *testing.T) {
	repo := &stubRepo{}
	pub := &slowPublisher{}
	service := NewService(repo, pub, nil)

	j, err := service.Retry(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "ocr.digital.s3", j.Handler)
	assert.Equal(t, "ocr.digital.s3", pub.LastTopic)
	assert.Equal(t, []string{"7"}, repo.deleted)
}

func TestRetry_NoPublisher(t *testing.T) {
	service := NewService(&stubRepo{}, nil, nil)
	_, err := service.Retry(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNoPublisher)
}

func TestService_Discard(t *testing.T) {
	repo := &stubRepo{}
	service := NewService(repo, nil, nil)

	require.NoError(t, service.Discard(context.Background(), "3"))
	assert.Equal(t, []string{"3"}, repo.deleted)
}

func TestFilter_Limit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, Filter{}.limit())
	assert.Equal(t, 20, Filter{Limit: 20}.limit())
	assert.Equal(t, MaxListLimit, Filter{Limit: MaxListLimit + 1}.limit())
}

func TestService_Count(t *testing.T) {
	service := NewService(&stubRepo{}, nil, nil)

	count, err := service.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}
