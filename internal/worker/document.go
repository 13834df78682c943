package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/nsqio/go-nsq"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/pipeline"
	"newsdesk/apps/backend/internal/queue"
)

type DocumentConsumer struct {
	base
	proc    DocumentProcessor
	objects ObjectDownloader
	bucket  string
}

// NewDocumentConsumer handles TopicProcessDocument. bucket names the
// default bucket used when a task does not carry one.
func NewDocumentConsumer(proc DocumentProcessor, objects ObjectDownloader, bucket string, dead queue.DeadLetterStore, notifier NotificationQueue, opts Options) *DocumentConsumer {
	return &DocumentConsumer{
		base:    newBase(config.TopicProcessDocument, dead, notifier, opts),
		proc:    proc,
		objects: objects,
		bucket:  bucket,
	}
}

func (c *DocumentConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task DocumentTask
	err := json.Unmarshal(m.Body, &task)

	ctx, taskID, done := c.begin(m, task.TaskID, task.CorrelationID)
	defer done()

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid document task", "error", err)
		return nil
	}
	if task.S3Key == "" {
		slog.WarnContext(ctx, "document task without s3_key, dropping")
		return nil
	}

	bucket := task.Bucket
	if bucket == "" {
		bucket = c.bucket
	}

	tmp, err := os.CreateTemp(c.opts.TempDir, "newsdesk_*.pdf")
	if err != nil {
		return c.fail(ctx, m, taskID, fmt.Errorf("create temp file: %w", err))
	}
	local := tmp.Name()
	tmp.Close()
	defer os.Remove(local)

	slog.InfoContext(ctx, "downloading document", "bucket", bucket, "key", task.S3Key)
	if err := c.objects.Download(ctx, bucket, task.S3Key, local); err != nil {
		return c.fail(ctx, m, taskID, fmt.Errorf("download %s: %w", task.S3Key, err))
	}

	doc := task.document(local, fmt.Sprintf("s3://%s/%s", bucket, task.S3Key))
	resp, err := c.proc.ProcessPDF(ctx, taskID, doc)
	if err != nil {
		return c.fail(ctx, m, taskID, err)
	}
	slog.InfoContext(ctx, "document processed", "pages", resp.TotalPages, "articles", len(resp.Articles))

	if !task.Notify {
		return nil
	}
	if err := c.enqueue(ctx, taskID, pipeline.NotificationFrom(resp, doc)); err != nil {
		return c.fail(ctx, m, taskID, err)
	}
	return nil
}

type ImagesConsumer struct {
	base
	proc DocumentProcessor
}

func NewImagesConsumer(proc DocumentProcessor, dead queue.DeadLetterStore, notifier NotificationQueue, opts Options) *ImagesConsumer {
	return &ImagesConsumer{
		base: newBase(config.TopicProcessImages, dead, notifier, opts),
		proc: proc,
	}
}

func (c *ImagesConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task ImagesTask
	err := json.Unmarshal(m.Body, &task)

	ctx, taskID, done := c.begin(m, task.TaskID, task.CorrelationID)
	defer done()

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid images task", "error", err)
		return nil
	}
	if task.ImageDir == "" {
		slog.WarnContext(ctx, "images task without image_dir, dropping")
		return nil
	}

	doc := task.document()
	resp, err := c.proc.ProcessImages(ctx, taskID, doc)
	if errors.Is(err, pipeline.ErrNoImages) {
		// Redelivery will not make the directory appear.
		slog.WarnContext(ctx, "no page images found, dropping", "image_dir", task.ImageDir)
		return nil
	}
	if err != nil {
		return c.fail(ctx, m, taskID, err)
	}
	slog.InfoContext(ctx, "images processed", "pages", resp.TotalPages, "articles", len(resp.Articles))

	if !task.Notify {
		return nil
	}
	if err := c.enqueue(ctx, taskID, pipeline.NotificationFrom(resp, doc)); err != nil {
		return c.fail(ctx, m, taskID, err)
	}
	return nil
}
