package worker

import (
	"context"

	"newsdesk/apps/backend/internal/notify"
	"newsdesk/apps/backend/internal/pipeline"
)

const (
	DefaultDPI     = 200
	DefaultQuality = 85
)

// DocumentTask asks for a PDF stored in object storage to be processed.
type DocumentTask struct {
	TaskID        string `json:"task_id"`
	S3Key         string `json:"s3_key"`
	Bucket        string `json:"bucket,omitempty"`
	Publication   string `json:"publication"`
	Edition       string `json:"edition"`
	Date          string `json:"date"`
	Language      string `json:"language"`
	Zone          string `json:"zone"`
	DPI           int    `json:"dpi,omitempty"`
	Quality       int    `json:"quality,omitempty"`
	Resize        bool   `json:"resize"`
	Notify        bool   `json:"notify"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (t DocumentTask) document(source, ref string) pipeline.Document {
	dpi, quality := t.DPI, t.Quality
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	return pipeline.Document{
		Publication: t.Publication,
		Edition:     t.Edition,
		Language:    t.Language,
		Zone:        t.Zone,
		Date:        t.Date,
		Source:      source,
		StorageRef:  ref,
		Mode:        pipeline.ModePDF,
		DPI:         dpi,
		Quality:     quality,
		Resize:      t.Resize,
		Notify:      t.Notify,
	}
}

// ImagesTask asks for a local directory of page images to be processed.
type ImagesTask struct {
	TaskID        string `json:"task_id"`
	ImageDir      string `json:"image_dir"`
	Publication   string `json:"publication"`
	Edition       string `json:"edition"`
	Date          string `json:"date"`
	Language      string `json:"language"`
	Zone          string `json:"zone"`
	Notify        bool   `json:"notify"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (t ImagesTask) document() pipeline.Document {
	return pipeline.Document{
		Publication: t.Publication,
		Edition:     t.Edition,
		Language:    t.Language,
		Zone:        t.Zone,
		Date:        t.Date,
		Source:      t.ImageDir,
		Mode:        pipeline.ModeImages,
		DPI:         DefaultDPI,
		Notify:      t.Notify,
	}
}

// DigitalS3Task points at a crawled article JSON in object storage.
type DigitalS3Task struct {
	TaskID           string `json:"task_id"`
	S3JSONURL        string `json:"s3_json_url"`
	RequestMediaID   int    `json:"request_media_id,omitempty"`
	RequestSiteName  string `json:"request_site_name,omitempty"`
	RequestTimestamp string `json:"request_timestamp,omitempty"`
	CorrelationID    string `json:"correlation_id,omitempty"`
}

// DigitalRawTask carries the crawled article inline.
type DigitalRawTask struct {
	pipeline.TextDocument
	TaskID        string `json:"task_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type DocumentProcessor interface {
	ProcessPDF(ctx context.Context, taskID string, doc pipeline.Document) (*pipeline.Response, error)
	ProcessImages(ctx context.Context, taskID string, doc pipeline.Document) (*pipeline.Response, error)
}

type TextProcessor interface {
	ProcessText(ctx context.Context, taskID string, doc pipeline.TextDocument) (*pipeline.TextResponse, error)
}

type ObjectDownloader interface {
	Download(ctx context.Context, bucket, key, dst string) error
}

type ObjectFetcher interface {
	Fetch(ctx context.Context, s3URL string) ([]byte, error)
}

// NotificationQueue is satisfied by *notify.Enqueuer.
type NotificationQueue interface {
	Enabled() bool
	Message(ctx context.Context, taskID string, payload notify.Payload) notify.Message
	Enqueue(ctx context.Context, taskID string, payload notify.Payload) error
}
