package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/adapter/storage"
)

func TestParseS3URL(t *testing.T) {
	bucket, key, err := storage.ParseS3URL("s3://crawler-out/2025/03/14/article 1.json")
	require.NoError(t, err)
	assert.Equal(t, "crawler-out", bucket)
	assert.Equal(t, "2025/03/14/article 1.json", key)

	for _, bad := range []string{"https://bucket/key", "s3://bucket", "s3:///key", "::"} {
		_, _, err := storage.ParseS3URL(bad)
		assert.ErrorIs(t, err, storage.ErrInvalidURL, bad)
	}
}

func TestMinioStore_URL(t *testing.T) {
	s, err := storage.NewMinioStore(storage.Config{
		Endpoint: "s3.ap-south-1.amazonaws.com",
		Region:   "ap-south-1",
		Bucket:   "papers",
		UseSSL:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://papers.s3.ap-south-1.amazonaws.com/digital/a/b.jpg", s.URL("digital/a/b.jpg"))

	s, err = storage.NewMinioStore(storage.Config{
		Endpoint:      "minio:9000",
		Bucket:        "papers",
		PublicBaseURL: "http://cdn.local/papers/",
	})
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.local/papers/digital/a/b.jpg", s.URL("digital/a/b.jpg"))
}
