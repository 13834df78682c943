package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/config"
)

func setWorkerEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_BUCKET", "clips")
	t.Setenv("GEMINI_API_KEYS", "k1,k2")
}

func TestLoadConfig(t *testing.T) {
	setWorkerEnv(t)
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	setWorkerEnv(t)
	content := []byte("DB_HOST=loaded-from-file\nREDIS_ADDR=cache:6380")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
	assert.Equal(t, "cache:6380", cfg.RedisAddr)
}

func TestLoadConfig_Defaults(t *testing.T) {
	setWorkerEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.RasterChunkSize)
	assert.Equal(t, 90*time.Second, cfg.RasterTimeout())
	assert.Equal(t, 3, cfg.RasterMaxRetries)
	assert.Equal(t, 1500, cfg.RasterMemoryLimitMB)
	assert.Equal(t, 3000, cfg.SegmentMaxDimension)
	assert.Equal(t, 2000, cfg.AnalyzeMaxDimension)
	assert.Equal(t, 45*time.Second, cfg.NotifyTimeout())
	assert.Equal(t, 10*time.Minute, cfg.NotifyBaseDelay())
	assert.Equal(t, 5, cfg.NotifyMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.DocumentRetryDelay())
	assert.Equal(t, 3*time.Minute, cfg.DigitalRetryDelay())
	assert.Equal(t, time.Hour, cfg.ProgressTTL())
	assert.Equal(t, "celery_worker_ML_key_idx_v2", cfg.KeyCounterName)
	assert.Equal(t, "digital", cfg.S3KeyPrefix)
	assert.Equal(t, 0, cfg.FanoutLimit)
}

func TestLoadConfig_APIKeys(t *testing.T) {
	t.Setenv("S3_BUCKET", "clips")
	t.Setenv("GEMINI_API_KEYS", "alpha, ,beta")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.APIKeys())
}

func TestLoadConfig_TopicTaxonomy(t *testing.T) {
	t.Setenv("S3_BUCKET", "clips")
	t.Setenv("GEMINI_API_KEYS", "k1")
	t.Setenv("TOPIC_TAXONOMY", "Ministry of Coal,Ministry of Mines")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"Ministry of Coal", "Ministry of Mines"}, cfg.TopicTaxonomy)
	assert.Equal(t, 90*time.Minute, cfg.NSQMaxMsgTimeout())
	assert.Equal(t, time.Hour, cfg.DocumentTimeout())
}

func TestLoadConfig_Toggles(t *testing.T) {
	t.Setenv("ENABLE_API", "false")
	t.Setenv("ENABLE_DOCUMENT_WORKER", "false")
	t.Setenv("ENABLE_DIGITAL_WORKER", "false")
	t.Setenv("WORKER_CONCURRENCY", "10")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.False(t, cfg.EnableDocumentWorker)
	assert.True(t, cfg.EnableNotifyWorker)
	assert.Equal(t, 10, cfg.WorkerConcurrency)
}
