// Package publish uploads article crops and their analysis artifacts to
// object storage.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"newsdesk/apps/backend/internal/metrics"
)

const DefaultPrefix = "digital"

// ObjectStore persists one object and returns its public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

type Publisher struct {
	store  ObjectStore
	prefix string
}

func New(store ObjectStore, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{store: store, prefix: strings.Trim(prefix, "/")}
}

// Item is one unit to publish. ImagePath may be empty for text-only units;
// Analysis is serialized as the JSON artifact.
type Item struct {
	ID          string
	Publication string
	Edition     string
	Date        string
	Page        int
	ImagePath   string
	Analysis    any
}

type Outcome struct {
	ImageURL string
	JSONURL  string
	Error    string
}

// Publish uploads the image and the analysis artifact concurrently. Each
// failure is recorded in Outcome.Error. The local image is removed once both
// uploads have finished.
func (p *Publisher) Publish(ctx context.Context, item Item) Outcome {
	var (
		out    Outcome
		errs   []string
		mu     sync.Mutex
		g      errgroup.Group
		record = func(msg string) {
			mu.Lock()
			errs = append(errs, msg)
			mu.Unlock()
		}
	)

	if item.ImagePath != "" {
		g.Go(func() error {
			url, err := p.uploadFile(ctx, item, item.ImagePath)
			metrics.UploadsTotal.WithLabelValues("image", metrics.Outcome(err)).Inc()
			if err != nil {
				slog.WarnContext(ctx, "image upload failed", "article_id", item.ID, "error", err)
				record(fmt.Sprintf("image upload failed: %v", err))
				return nil
			}
			out.ImageURL = url
			return nil
		})
	}

	g.Go(func() error {
		url, err := p.uploadAnalysis(ctx, item)
		metrics.UploadsTotal.WithLabelValues("json", metrics.Outcome(err)).Inc()
		if err != nil {
			slog.WarnContext(ctx, "json upload failed", "article_id", item.ID, "error", err)
			record(fmt.Sprintf("json upload failed: %v", err))
			return nil
		}
		out.JSONURL = url
		return nil
	})

	_ = g.Wait()

	if item.ImagePath != "" {
		if err := os.Remove(item.ImagePath); err != nil && !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to remove crop", "path", item.ImagePath, "error", err)
		}
	}

	out.Error = strings.Join(errs, "; ")
	return out
}

func (p *Publisher) uploadFile(ctx context.Context, item Item, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	name := filepath.Base(localPath)
	key := ObjectKey(p.prefix, item.Publication, item.Edition, item.Date, item.Page, name)
	return p.store.Put(ctx, key, f, info.Size(), ContentTypeFor(name))
}

func (p *Publisher) uploadAnalysis(ctx context.Context, item Item) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(item.Analysis); err != nil {
		return "", fmt.Errorf("encode analysis: %w", err)
	}
	name := item.ID + "_analysis.json"
	key := ObjectKey(p.prefix, item.Publication, item.Edition, item.Date, item.Page, name)
	return p.store.Put(ctx, key, &buf, int64(buf.Len()), ContentTypeFor(name))
}

// Letters, combining marks and digits of any script are kept.
var unsafeKeyChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_.\-/]`)

// ObjectKey builds {prefix}/{publication}/{edition}/{date}/{page}/{filename}.
func ObjectKey(prefix, publication, edition, date string, page int, filename string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%03d/%s", prefix, sanitize(publication), sanitize(edition), date, page, filename)
}

func sanitize(s string) string {
	return strings.ReplaceAll(unsafeKeyChars.ReplaceAllString(s, "_"), " ", "_")
}

func ContentTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".json" {
		return "application/json; charset=utf-8"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
