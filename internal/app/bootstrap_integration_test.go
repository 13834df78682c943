package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/app"
	"newsdesk/apps/backend/internal/testutils"
)

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()
	cfg.S3Bucket = "newsdesk-test"
	cfg.S3UseSSL = false

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	var exists bool
	err = deps.DB.QueryRow("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'failed_jobs')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "failed_jobs table should exist")

	assert.NoError(t, deps.Redis.Ping(context.Background()).Err())

	ok, err := suite.Minio.BucketExists(context.Background(), "newsdesk-test")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, deps.NSQProducer.Ping())
}

func TestBootstrap_RedisDown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t).WithPostgres()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()
	cfg.RedisAddr = "localhost:54323"
	cfg.BootstrapRetryAttempts = 2
	cfg.BootstrapRetryDelaySeconds = 0

	deps, err := app.Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
	assert.Contains(t, err.Error(), "failed to ping redis")
}
