package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/progress"
	"newsdesk/apps/backend/internal/publish"
	"newsdesk/apps/backend/internal/raster"
	"newsdesk/apps/backend/internal/segment"
)

type memStore struct {
	mu   sync.Mutex
	recs map[string]progress.Record
}

func newMemStore() *memStore { return &memStore{recs: map[string]progress.Record{}} }

func (m *memStore) Save(ctx context.Context, rec progress.Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.TaskID] = rec
	return nil
}

func (m *memStore) Load(ctx context.Context, id string) (*progress.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return nil, progress.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) get(id string) progress.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[id]
}

type fakeRasterizer struct {
	pages []int
	err   error
	seen  raster.Render
}

func (f *fakeRasterizer) RasterizeDocument(ctx context.Context, pdfPath, outDir string, r raster.Render) ([]raster.Page, error) {
	f.seen = r
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var pages []raster.Page
	for _, n := range f.pages {
		p := filepath.Join(outDir, fmt.Sprintf("page-%03d.jpg", n))
		if err := os.WriteFile(p, []byte("page"), 0o644); err != nil {
			return nil, err
		}
		pages = append(pages, raster.Page{Number: n, Path: p, DPI: r.DPI})
	}
	return pages, nil
}

// fakeSegmenter emits cropsPerPage[page] crop files per page.
type fakeSegmenter struct {
	mu           sync.Mutex
	cropsPerPage map[int]int
	failPages    map[int]error
	outDirs      []string
	prefixes     []string
	pages        []raster.Page
}

func (f *fakeSegmenter) Process(ctx context.Context, page raster.Page, prefix, outDir string) ([]segment.Crop, error) {
	f.mu.Lock()
	f.outDirs = append(f.outDirs, outDir)
	f.prefixes = append(f.prefixes, prefix)
	f.pages = append(f.pages, page)
	f.mu.Unlock()

	if err := f.failPages[page.Number]; err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var crops []segment.Crop
	for i := 0; i < f.cropsPerPage[page.Number]; i++ {
		id := segment.CropID(prefix, page.Number, i, "abcdef")
		path := filepath.Join(outDir, id+".jpg")
		if err := os.WriteFile(path, []byte("crop"), 0o644); err != nil {
			return nil, err
		}
		crops = append(crops, segment.Crop{ID: id, Page: page.Number, Path: path})
	}
	return crops, nil
}

// fakeAnalyzer answers through per-crop functions keyed by crop index on
// its page.
type fakeAnalyzer struct {
	crop func(segment.Crop) analyze.Result
	text func(analyze.TextInput) analyze.Result

	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeAnalyzer) AnalyzeCrop(ctx context.Context, crop segment.Crop, language string) analyze.Result {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	res := f.crop(crop)
	res.CropID, res.Page, res.Path = crop.ID, crop.Page, crop.Path
	if res.Language == "" {
		res.Language = language
	}
	return res
}

func (f *fakeAnalyzer) AnalyzeText(ctx context.Context, in analyze.TextInput) analyze.Result {
	return f.text(in)
}

type fakePublisher struct {
	mu    sync.Mutex
	items   []publish.Item
	fail    map[string]string
	failAll string
}

func (f *fakePublisher) Publish(ctx context.Context, item publish.Item) publish.Outcome {
	f.mu.Lock()
	f.items = append(f.items, item)
	f.mu.Unlock()
	if item.ImagePath != "" {
		_ = os.Remove(item.ImagePath)
	}
	if msg, ok := f.fail[item.ID]; ok {
		return publish.Outcome{Error: msg}
	}
	if f.failAll != "" {
		return publish.Outcome{Error: f.failAll}
	}
	out := publish.Outcome{JSONURL: "https://cdn/" + item.ID + "_analysis.json"}
	if item.ImagePath != "" {
		out.ImageURL = "https://cdn/" + item.ID + ".jpg"
	}
	return out
}

func known(topic string) func(segment.Crop) analyze.Result {
	return func(segment.Crop) analyze.Result {
		return analyze.Result{Topic: topic, Heading: "h", EnglishHeading: "H", Content: "c",
			Sentiment: analyze.SentimentNeutral, SecondaryTopics: []string{}, Date: analyze.UnknownDate}
	}
}
