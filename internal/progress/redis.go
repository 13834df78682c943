package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const KeyPrefix = "task_progress:"

// RedisStore keeps one JSON document per task, replaced whole on each save.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func Key(taskID string) string {
	return KeyPrefix + taskID
}

func (s *RedisStore) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return s.client.Set(ctx, Key(rec.TaskID), data, ttl).Err()
}

func (s *RedisStore) Load(ctx context.Context, taskID string) (*Record, error) {
	data, err := s.client.Get(ctx, Key(taskID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode progress %s: %w", taskID, err)
	}
	return &rec, nil
}
