// Package keys spreads oracle credentials across worker processes with a
// shared round-robin counter.
package keys

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const DefaultCounterName = "celery_worker_ML_key_idx_v2"

var ErrNoKeys = errors.New("no oracle credentials configured")

type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
}

type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

// Assignment is the credential chosen for this process.
type Assignment struct {
	Index    int
	Key      string
	Pool     int
	Fallback bool
}

// Masked shows only the last four characters of the credential.
func (a Assignment) Masked() string {
	if len(a.Key) < 4 {
		return "N/A"
	}
	return "..." + a.Key[len(a.Key)-4:]
}

type Picker struct {
	counter Counter
	name    string
}

func NewPicker(counter Counter, name string) *Picker {
	if name == "" {
		name = DefaultCounterName
	}
	return &Picker{counter: counter, name: name}
}

// Pick increments the shared counter and maps it onto the pool. When the
// counter is unavailable the process id decides instead.
func (p *Picker) Pick(ctx context.Context, pool []string, pid int) (Assignment, error) {
	keys := make([]string, 0, len(pool))
	for _, k := range pool {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return Assignment{}, ErrNoKeys
	}

	a := Assignment{Pool: len(keys)}
	if p.counter != nil {
		n, err := p.counter.Incr(ctx, p.name)
		if err == nil {
			a.Index = int((n - 1) % int64(len(keys)))
			if a.Index < 0 {
				a.Index += len(keys)
			}
			a.Key = keys[a.Index]
			slog.InfoContext(ctx, "oracle credential assigned", "index", a.Index, "counter", n, "key", a.Masked())
			return a, nil
		}
		slog.WarnContext(ctx, "credential counter unavailable, falling back to pid", "error", err)
	}

	if pid < 0 {
		pid = -pid
	}
	a.Index = pid % len(keys)
	a.Key = keys[a.Index]
	a.Fallback = true
	slog.InfoContext(ctx, "oracle credential assigned by pid", "index", a.Index, "pid", pid, "key", a.Masked())
	return a, nil
}

// Pick uses the default counter name.
func Pick(ctx context.Context, counter Counter, pool []string, pid int) (Assignment, error) {
	return NewPicker(counter, "").Pick(ctx, pool, pid)
}
