package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"newsdesk/apps/backend/internal/app"
	"newsdesk/apps/backend/internal/config"
)

func TestWithRetry_Success(t *testing.T) {
	calls := 0
	err := app.WithRetry(context.Background(), "db", 1, time.Millisecond, func(context.Context) error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_Retries(t *testing.T) {
	calls := 0
	err := app.WithRetry(context.Background(), "redis", 5, time.Millisecond, func(context.Context) error {
		calls++
		if calls <= 2 {
			return errors.New("not ready")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_Fail(t *testing.T) {
	err := app.WithRetry(context.Background(), "redis", 3, time.Millisecond, func(context.Context) error {
		return errors.New("permanent error")
	})
	assert.EqualError(t, err, "permanent error")
}

func TestWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := app.WithRetry(ctx, "db", 10, time.Hour, func(context.Context) error {
		return errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBootstrap_DBDown(t *testing.T) {
	cfg := &config.Config{
		DBHost:                     "localhost",
		DBPort:                     54322,
		DBUser:                     "test",
		DBPass:                     "test",
		DBName:                     "test",
		BootstrapRetryAttempts:     1,
		BootstrapRetryDelaySeconds: 0,
	}

	start := time.Now()
	deps, err := app.Bootstrap(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping db")
	assert.Less(t, time.Since(start), 2*time.Second)
}
