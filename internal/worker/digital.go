package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nsqio/go-nsq"

	"newsdesk/apps/backend/internal/config"
	"newsdesk/apps/backend/internal/pipeline"
	"newsdesk/apps/backend/internal/queue"
)

type textRunner struct {
	base
	proc TextProcessor
}

func (r *textRunner) run(ctx context.Context, m *nsq.Message, taskID string, doc pipeline.TextDocument) error {
	if strings.TrimSpace(doc.Content) == "" {
		slog.WarnContext(ctx, "digital article without content, dropping", "url", doc.URL)
		return nil
	}

	resp, err := r.proc.ProcessText(ctx, taskID, doc)
	if err != nil {
		return r.fail(ctx, m, taskID, err)
	}
	if resp.Dropped != "" {
		slog.InfoContext(ctx, "digital article dropped", "reason", resp.Dropped, "url", doc.URL)
		return nil
	}
	slog.InfoContext(ctx, "digital article processed", "topic", resp.Result.Topic, "json_url", resp.JSONURL)

	payload := pipeline.DigitalNotification(resp, doc, r.opts.Clock())
	if err := r.enqueue(ctx, taskID, payload); err != nil {
		return r.fail(ctx, m, taskID, err)
	}
	return nil
}

type DigitalS3Consumer struct {
	textRunner
	objects ObjectFetcher
}

func NewDigitalS3Consumer(proc TextProcessor, objects ObjectFetcher, dead queue.DeadLetterStore, notifier NotificationQueue, opts Options) *DigitalS3Consumer {
	return &DigitalS3Consumer{
		textRunner: textRunner{base: newBase(config.TopicDigitalS3, dead, notifier, opts), proc: proc},
		objects:    objects,
	}
}

func (c *DigitalS3Consumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task DigitalS3Task
	err := json.Unmarshal(m.Body, &task)

	ctx, taskID, done := c.begin(m, task.TaskID, task.CorrelationID)
	defer done()

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid digital task", "error", err)
		return nil
	}
	if task.S3JSONURL == "" {
		slog.WarnContext(ctx, "digital task without s3_json_url, dropping")
		return nil
	}

	raw, err := c.objects.Fetch(ctx, task.S3JSONURL)
	if err != nil {
		return c.fail(ctx, m, taskID, fmt.Errorf("fetch %s: %w", task.S3JSONURL, err))
	}

	var doc pipeline.TextDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return c.bury(ctx, m, taskID, fmt.Errorf("decode article %s: %w", task.S3JSONURL, err))
	}
	if task.RequestMediaID > 0 {
		doc.MediaID = task.RequestMediaID
	}
	doc.SiteName = task.RequestSiteName
	doc.RequestTimestamp = task.RequestTimestamp

	return c.run(ctx, m, taskID, doc)
}

type DigitalRawConsumer struct {
	textRunner
}

func NewDigitalRawConsumer(proc TextProcessor, dead queue.DeadLetterStore, notifier NotificationQueue, opts Options) *DigitalRawConsumer {
	return &DigitalRawConsumer{
		textRunner: textRunner{base: newBase(config.TopicDigitalRaw, dead, notifier, opts), proc: proc},
	}
}

func (c *DigitalRawConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var task DigitalRawTask
	err := json.Unmarshal(m.Body, &task)

	ctx, taskID, done := c.begin(m, task.TaskID, task.CorrelationID)
	defer done()

	if err != nil {
		slog.ErrorContext(ctx, "poison pill: invalid digital article", "error", err)
		return nil
	}
	return c.run(ctx, m, taskID, task.TextDocument)
}
