package publish_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/publish"
)

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failOn  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if f.failOn != "" && strings.HasSuffix(key, f.failOn) {
		return "", errors.New("access denied")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if int64(len(data)) != size {
		return "", errors.New("size mismatch")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	f.types[key] = contentType
	return "https://bucket.s3.ap-south-1.amazonaws.com/" + key, nil
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("jpeg"), 0o644))
	return p
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t,
		"digital/The_Hindu/Delhi_City/14-03-2025/003/a.jpg",
		publish.ObjectKey("digital", "The Hindu", "Delhi City", "14-03-2025", 3, "a.jpg"))
	assert.Equal(t,
		"digital/Amar_Ujala___/a-b.c/01-01-2025/012/x_analysis.json",
		publish.ObjectKey("digital", "Amar Ujala &!", "a-b.c", "01-01-2025", 12, "x_analysis.json"))
	assert.Equal(t,
		"digital/site//01-01-2025/001/x.json",
		publish.ObjectKey("digital", "site", "", "01-01-2025", 1, "x.json"))
	assert.Equal(t,
		"digital/दैनिक_भास्कर/x/01-01-2025/001/a.jpg",
		publish.ObjectKey("digital", "दैनिक भास्कर", "x", "01-01-2025", 1, "a.jpg"))
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "image/jpeg", publish.ContentTypeFor("a.jpg"))
	assert.Equal(t, "image/png", publish.ContentTypeFor("a.PNG"))
	assert.Equal(t, "application/json; charset=utf-8", publish.ContentTypeFor("a_analysis.json"))
	assert.Equal(t, "application/octet-stream", publish.ContentTypeFor("a.unknownext"))
}

func TestPublish_Success(t *testing.T) {
	store := newFakeStore()
	p := publish.New(store, "")
	img := writeFile(t, "doc_p001_crop001_abcdef.jpg")

	out := p.Publish(context.Background(), publish.Item{
		ID:          "doc_p001_crop001_abcdef",
		Publication: "The Hindu",
		Edition:     "Delhi",
		Date:        "14-03-2025",
		Page:        1,
		ImagePath:   img,
		Analysis:    map[string]string{"heading": "बजट <पारित>"},
	})

	assert.Empty(t, out.Error)
	assert.Equal(t, "https://bucket.s3.ap-south-1.amazonaws.com/digital/The_Hindu/Delhi/14-03-2025/001/doc_p001_crop001_abcdef.jpg", out.ImageURL)
	assert.True(t, strings.HasSuffix(out.JSONURL, "/001/doc_p001_crop001_abcdef_analysis.json"))

	jsonKey := "digital/The_Hindu/Delhi/14-03-2025/001/doc_p001_crop001_abcdef_analysis.json"
	raw := store.objects[jsonKey]
	assert.Contains(t, string(raw), "बजट <पारित>", "utf-8 and markup are written unescaped")
	assert.Contains(t, string(raw), "\n  \"heading\"")
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "application/json; charset=utf-8", store.types[jsonKey])

	assert.NoFileExists(t, img)
}

func TestPublish_FailuresAreIndependent(t *testing.T) {
	store := newFakeStore()
	store.failOn = ".jpg"
	img := writeFile(t, "c.jpg")

	out := publish.New(store, "digital").Publish(context.Background(), publish.Item{
		ID: "c", Publication: "p", Date: "d", Page: 2, ImagePath: img, Analysis: map[string]int{"a": 1},
	})

	assert.Contains(t, out.Error, "image upload failed: access denied")
	assert.NotContains(t, out.Error, "json upload failed")
	assert.Empty(t, out.ImageURL)
	assert.NotEmpty(t, out.JSONURL)
	assert.NoFileExists(t, img, "crop is removed even when its upload fails")
}

func TestPublish_BothFail(t *testing.T) {
	store := newFakeStore()
	img := writeFile(t, "c.jpg")
	require.NoError(t, os.Remove(img))
	store.failOn = ".json"

	out := publish.New(store, "digital").Publish(context.Background(), publish.Item{
		ID: "c", Publication: "p", Date: "d", Page: 2, ImagePath: img, Analysis: map[string]int{"a": 1},
	})
	assert.Contains(t, out.Error, "image upload failed")
	assert.Contains(t, out.Error, "json upload failed")
}

func TestPublish_TextOnly(t *testing.T) {
	store := newFakeStore()
	out := publish.New(store, "digital").Publish(context.Background(), publish.Item{
		ID: "site_1", Publication: "site", Date: "01-01-2025", Page: 1, Analysis: map[string]int{"a": 1},
	})
	assert.Empty(t, out.Error)
	assert.Empty(t, out.ImageURL)
	assert.Len(t, store.objects, 1)
}
