package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/pipeline"
	"newsdesk/apps/backend/internal/segment"
)

func TestEffectiveDate(t *testing.T) {
	now := time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		external  string
		extracted []string
		want      string
	}{
		{"external wins", "02-03-2025", []string{"01-01-2025"}, "02-03-2025"},
		{"first extracted", "unknown", []string{"bad", "05-05-2025", "06-06-2025"}, "05-05-2025"},
		{"malformed external", "2025-03-02", nil, "09-01-2025"},
		{"impossible external", "31-02-2025", []string{"07-07-2025"}, "07-07-2025"},
		{"today", "", nil, "09-01-2025"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pipeline.EffectiveDate(tt.external, tt.extracted, now))
		})
	}
}

func TestPartition(t *testing.T) {
	dir := t.TempDir()
	crops := make([]segment.Crop, 3)
	for i := range crops {
		p := filepath.Join(dir, segment.CropID("doc", 1, i, "aaaaaa")+".jpg")
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		crops[i] = segment.Crop{ID: segment.CropID("doc", 1, i, "aaaaaa"), Page: 1, Path: p}
	}
	results := []analyze.Result{
		{Topic: "Health", Date: "unknown"},
		{Topic: "unknown", Date: "02-02-2025"},
		{Error: "article crop image file not found"},
	}

	retained, errored, dates := pipeline.Partition(context.Background(), crops, results)

	require.Len(t, retained, 1)
	assert.Equal(t, crops[0].ID, retained[0].CropID)
	assert.Equal(t, crops[0].Path, retained[0].Path)
	require.Len(t, errored, 1)
	assert.Equal(t, crops[2].ID, errored[0].CropID)
	assert.Equal(t, []string{"02-02-2025"}, dates)

	_, err := os.Stat(crops[1].Path)
	assert.True(t, os.IsNotExist(err), "unknown-topic crop removed")
	_, err = os.Stat(crops[0].Path)
	assert.NoError(t, err, "retained crop kept for upload")
}

func TestNotificationFrom(t *testing.T) {
	resp := &pipeline.Response{
		Publication: "Amar Ujala",
		Edition:     "",
		Date:        "05-06-2025",
		Language:    "Hindi",
		ZoneName:    "North",
		Articles: []pipeline.PublishedArticle{
			{Result: analyze.Result{CropID: "a", Page: 4, Heading: "orig", EnglishHeading: "", Topic: "Health"}, ImageURL: "https://cdn/a.jpg"},
			{Result: analyze.Result{CropID: "b", Error: "json upload failed: x"}},
		},
	}
	doc := pipeline.Document{Publication: "Amar Ujala", StorageRef: "s3://scans/x.pdf"}

	p := pipeline.NotificationFrom(resp, doc)
	require.NotNil(t, p)
	assert.Equal(t, pipeline.MediaScanned, p.MediaID)
	assert.Equal(t, "", p.Edition)
	require.Len(t, p.Articles, 1)
	a := p.Articles[0]
	assert.Equal(t, "orig", a.Heading, "english heading falls back to heading")
	require.NotNil(t, a.PageNumber)
	assert.Equal(t, 4, *a.PageNumber)
	assert.Equal(t, []string{}, a.SecondaryTopics)
	assert.Equal(t, "unknown", a.ExtractedDate)
	assert.Equal(t, "https://cdn/a.jpg", a.ImageURL)
}

func digitalDoc() pipeline.TextDocument {
	return pipeline.TextDocument{
		Title:     "Budget announced",
		Source:    "",
		URL:       "https://news.example/budget",
		Language:  "English",
		Content:   "The finance minister announced...",
		Category:  "politics",
		ImageURLs: []string{"https://img/1.jpg", "https://img/2.jpg"},
		SiteName:  "example-news",
	}
}

func TestProcessText(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.an.text = func(in analyze.TextInput) analyze.Result {
		assert.Equal(t, "Budget announced", in.Heading)
		return analyze.Result{Topic: "Finance", EnglishHeading: "", Heading: "", Sentiment: analyze.SentimentPositive,
			SecondaryTopics: []string{"Commerce"}, Date: analyze.UnknownDate, Language: "English"}
	}

	doc := digitalDoc()
	resp, err := h.orch.ProcessText(context.Background(), "task-d1", doc)
	require.NoError(t, err)
	assert.Empty(t, resp.Dropped)
	assert.Equal(t, "https://cdn/task-d1_analysis.json", resp.JSONURL)

	require.Len(t, h.pub.items, 1)
	item := h.pub.items[0]
	assert.Empty(t, item.ImagePath)
	assert.Equal(t, "example-news", item.Publication)
	assert.Equal(t, "05-06-2025", item.Date)

	p := pipeline.DigitalNotification(resp, doc, fixedNow)
	require.NotNil(t, p)
	assert.Equal(t, 2, p.MediaID)
	assert.Equal(t, "example-news", p.Publication)
	assert.Equal(t, "Central", p.ZoneName)
	assert.Equal(t, "05-06-2025", p.Date)
	require.Len(t, p.Articles, 1)
	a := p.Articles[0]
	assert.Equal(t, "Budget announced", a.Heading)
	assert.Equal(t, doc.Content, a.Content)
	assert.Equal(t, "https://img/1.jpg", a.ImageURL)
	assert.Equal(t, []string{"https://news.example/budget"}, a.OriginalClips)
	assert.Nil(t, a.PageNumber)
	assert.Equal(t, []string{}, a.Authors)
}

func TestProcessText_Drops(t *testing.T) {
	tests := []struct {
		name   string
		result analyze.Result
		want   string
	}{
		{"advertisement", analyze.Result{Error: analyze.ErrAdvertisementFiltered.Error()}, pipeline.DroppedAdvertisement},
		{"unknown topic", analyze.Result{Topic: "Unknown"}, pipeline.DroppedUnknownTopic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, pipeline.Options{})
			h.an.text = func(analyze.TextInput) analyze.Result { return tt.result }

			resp, err := h.orch.ProcessText(context.Background(), "t", digitalDoc())
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Dropped)
			assert.Empty(t, h.pub.items)
			assert.Nil(t, pipeline.DigitalNotification(resp, digitalDoc(), fixedNow))
		})
	}
}

func TestProcessText_AnalysisError(t *testing.T) {
	h := newHarness(t, pipeline.Options{})
	h.an.text = func(analyze.TextInput) analyze.Result {
		return analyze.Result{Error: "digital text analysis failed: quota"}
	}
	_, err := h.orch.ProcessText(context.Background(), "t", digitalDoc())
	assert.EqualError(t, err, "digital text analysis failed: quota")
}

func TestDigitalNotification_DateChain(t *testing.T) {
	resp := &pipeline.TextResponse{Result: analyze.Result{Topic: "Health", Date: "unknown"}}

	doc := digitalDoc()
	doc.MediaID = 7
	doc.DatePublished = "2025-06-01"
	p := pipeline.DigitalNotification(resp, doc, fixedNow)
	assert.Equal(t, 7, p.MediaID)
	assert.Equal(t, "2025-06-01", p.Date)

	doc.DatePublished = ""
	doc.RequestTimestamp = "2025-06-02T10:00:00Z"
	assert.Equal(t, "2025-06-02T10:00:00Z", pipeline.DigitalNotification(resp, doc, fixedNow).Date)

	resp.Result.Date = "03-06-2025"
	assert.Equal(t, "03-06-2025", pipeline.DigitalNotification(resp, doc, fixedNow).Date)
}
