// Package pipeline turns one input document into published, enriched
// article records.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/middleware"
	"newsdesk/apps/backend/internal/progress"
	"newsdesk/apps/backend/internal/publish"
	"newsdesk/apps/backend/internal/raster"
	"newsdesk/apps/backend/internal/segment"
)

var ErrNoImages = errors.New("no page images found")

type Rasterizer interface {
	RasterizeDocument(ctx context.Context, pdfPath, outDir string, r raster.Render) ([]raster.Page, error)
}

type PageSegmenter interface {
	Process(ctx context.Context, page raster.Page, idPrefix, outDir string) ([]segment.Crop, error)
}

type ArticleAnalyzer interface {
	AnalyzeCrop(ctx context.Context, crop segment.Crop, language string) analyze.Result
	AnalyzeText(ctx context.Context, in analyze.TextInput) analyze.Result
}

type AssetPublisher interface {
	Publish(ctx context.Context, item publish.Item) publish.Outcome
}

type TrackerFactory func(taskID string) *progress.Tracker

type Deps struct {
	Rasterizer Rasterizer
	Segmenter  PageSegmenter
	Analyzer   ArticleAnalyzer
	Publisher  AssetPublisher
	Trackers   TrackerFactory
	Clock      func() time.Time
}

type Options struct {
	// FanoutLimit caps concurrent items per stage; 0 is unbounded.
	FanoutLimit int
	ScratchDir  string
	// ImageDPI is reported to the segmentation oracle for direct page images.
	ImageDPI int
}

type Orchestrator struct {
	deps Deps
	opts Options
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if opts.ImageDPI <= 0 {
		opts.ImageDPI = 200
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// ProcessPDF runs the full pipeline over a local PDF. Losing some pages is
// reported inside the response; producing none returns the minimal error
// response together with an error wrapping raster.ErrNoPages.
func (o *Orchestrator) ProcessPDF(ctx context.Context, taskID string, doc Document) (*Response, error) {
	ctx = middleware.WithTaskID(ctx, taskID)
	start := time.Now()
	tr := o.deps.Trackers(taskID)

	workDir, err := os.MkdirTemp(o.opts.ScratchDir, "newsdesk_pdf_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	o.start(ctx, tr, progress.StepInitializing, "task accepted", map[string]any{
		"publication": doc.Publication, "mode": string(ModePDF),
	})
	o.start(ctx, tr, progress.StepConverting, "rasterizing document", map[string]any{"dpi": doc.DPI})

	pages, err := o.deps.Rasterizer.RasterizeDocument(ctx, doc.Source, filepath.Join(workDir, "pages"),
		raster.Render{DPI: doc.DPI, Quality: doc.Quality, Resize: doc.Resize})
	if err != nil {
		slog.ErrorContext(ctx, "rasterization failed", "source", doc.Source, "error", err)
		tr.AddError(ctx, progress.StepConverting, err.Error())
		_ = tr.Fail(ctx, err)
		o.finish(ModePDF, start, err)
		return failedResponse(doc, err), fmt.Errorf("rasterize %s: %w", filepath.Base(doc.Source), err)
	}
	tr.CompleteStep(ctx, fmt.Sprintf("rasterized %d pages", len(pages)))

	base := strings.TrimSuffix(filepath.Base(doc.Source), filepath.Ext(doc.Source))
	prefix := base + "_" + raster.RandomHex(4)

	resp := o.run(ctx, tr, doc, pages, func(raster.Page) string { return prefix }, workDir, true)
	o.finish(ModePDF, start, nil)
	return resp, nil
}

var pageFromName = regexp.MustCompile(`page_(\d+)`)

// ProcessImages runs segmentation onwards over a directory of page images.
func (o *Orchestrator) ProcessImages(ctx context.Context, taskID string, doc Document) (*Response, error) {
	ctx = middleware.WithTaskID(ctx, taskID)
	start := time.Now()
	tr := o.deps.Trackers(taskID)

	o.start(ctx, tr, progress.StepInitializing, "task accepted", map[string]any{
		"publication": doc.Publication, "mode": string(ModeImages),
	})

	pages, err := o.listImages(doc.Source)
	if err != nil {
		slog.ErrorContext(ctx, "no usable page images", "dir", doc.Source, "error", err)
		_ = tr.Fail(ctx, err)
		o.finish(ModeImages, start, err)
		return failedResponse(doc, err), err
	}

	workDir, err := os.MkdirTemp(o.opts.ScratchDir, "newsdesk_images_")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	pub := strings.ReplaceAll(doc.Publication, " ", "_")
	date := strings.NewReplacer("/", "-", " ", "_").Replace(doc.Date)
	prefixFor := func(p raster.Page) string { return fmt.Sprintf("%s_%s_%d", pub, date, p.Number) }

	resp := o.run(ctx, tr, doc, pages, prefixFor, workDir, false)
	o.finish(ModeImages, start, nil)
	return resp, nil
}

func (o *Orchestrator) listImages(dir string) ([]raster.Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoImages, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoImages, dir)
	}
	sort.Strings(names)

	pages := make([]raster.Page, 0, len(names))
	for i, name := range names {
		num := i + 1
		if m := pageFromName.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				num = n
			}
		}
		pages = append(pages, raster.Page{Number: num, Path: filepath.Join(dir, name), DPI: o.opts.ImageDPI})
	}
	return pages, nil
}

// run drives segmenting, analyzing and uploading. ownPages marks page
// images the run created and may delete once segmented.
func (o *Orchestrator) run(ctx context.Context, tr *progress.Tracker, doc Document, pages []raster.Page,
	prefixFor func(raster.Page) string, workDir string, ownPages bool) *Response {

	tr.SetPages(ctx, len(pages))
	o.start(ctx, tr, progress.StepSegmenting, "segmenting pages", map[string]any{"pages": len(pages)})

	perPage := make([][]segment.Crop, len(pages))
	o.fanOut(len(pages), func(i int) {
		page := pages[i]
		defer tr.PageProcessed(ctx)
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "page processing panicked", "page", page.Number, "panic", r)
				tr.AddError(ctx, progress.StepSegmenting, fmt.Sprintf("page %d: %v", page.Number, r))
			}
		}()

		outDir := filepath.Join(workDir, fmt.Sprintf("page_%d", page.Number), "article_crops")
		crops, err := o.deps.Segmenter.Process(ctx, page, prefixFor(page), outDir)
		if ownPages {
			_ = os.Remove(page.Path)
		}
		if err != nil {
			slog.ErrorContext(ctx, "page segmentation failed", "page", page.Number, "error", err)
			tr.AddError(ctx, progress.StepSegmenting, fmt.Sprintf("page %d: %v", page.Number, err))
			return
		}
		perPage[i] = crops
	})

	var crops []segment.Crop
	for _, c := range perPage {
		crops = append(crops, c...)
	}
	tr.CompleteStep(ctx, fmt.Sprintf("found %d article crops", len(crops)))

	tr.SetArticles(ctx, len(crops))
	o.start(ctx, tr, progress.StepAnalyzing, "analyzing articles", map[string]any{"crops": len(crops)})

	results := make([]analyze.Result, len(crops))
	o.fanOut(len(crops), func(i int) {
		crop := crops[i]
		defer tr.ArticleProcessed(ctx)
		defer func() {
			if r := recover(); r != nil {
				results[i] = analyze.Result{CropID: crop.ID, Page: crop.Page, Path: crop.Path,
					Error: fmt.Sprintf("analysis exception: %v", r)}
			}
		}()
		results[i] = o.deps.Analyzer.AnalyzeCrop(ctx, crop, doc.Language)
	})

	retained, errored, dates := Partition(ctx, crops, results)
	for _, e := range errored {
		tr.AddError(ctx, progress.StepAnalyzing, fmt.Sprintf("%s: %s", e.CropID, e.Error))
	}
	date := EffectiveDate(doc.Date, dates, o.deps.Clock())
	tr.CompleteStep(ctx, fmt.Sprintf("%d retained, %d errored", len(retained), len(errored)))

	o.start(ctx, tr, progress.StepUploading, "publishing articles", map[string]any{"articles": len(retained), "date": date})
	published := o.publishAll(ctx, tr, doc, date, retained)
	tr.CompleteStep(ctx, fmt.Sprintf("published %d articles", len(published)))

	if err := tr.Complete(ctx); err != nil {
		slog.WarnContext(ctx, "failed to complete progress", "error", err)
	}

	resp := &Response{
		Publication: doc.Publication,
		Edition:     doc.Edition,
		Date:        date,
		Language:    doc.Language,
		ZoneName:    doc.Zone,
		TotalPages:  len(pages),
		Articles:    append(published, errored...),
		FileURLs:    fileURLs(published),
	}
	slog.InfoContext(ctx, "document processed", "pages", resp.TotalPages, "published", len(published),
		"errored", len(errored), "date", date)
	return resp
}

func (o *Orchestrator) publishAll(ctx context.Context, tr *progress.Tracker, doc Document, date string, retained []analyze.Result) []PublishedArticle {
	out := make([]PublishedArticle, len(retained))
	o.fanOut(len(retained), func(i int) {
		res := retained[i]
		defer func() {
			if r := recover(); r != nil {
				res.Error = strings.TrimSpace(res.Error + fmt.Sprintf(" upload exception: %v", r))
				out[i] = PublishedArticle{Result: res}
				removeCrop(ctx, res.Path)
			}
		}()
		outcome := o.deps.Publisher.Publish(ctx, publish.Item{
			ID:          res.CropID,
			Publication: doc.Publication,
			Edition:     doc.Edition,
			Date:        date,
			Page:        res.Page,
			ImagePath:   res.Path,
			Analysis:    res,
		})
		if outcome.Error != "" {
			res.Error = strings.TrimSpace(res.Error + " " + outcome.Error)
			tr.AddError(ctx, progress.StepUploading, fmt.Sprintf("%s: %s", res.CropID, outcome.Error))
			metrics.ArticlesTotal.WithLabelValues("errored").Inc()
		} else {
			metrics.ArticlesTotal.WithLabelValues("published").Inc()
		}
		out[i] = PublishedArticle{Result: res, ImageURL: outcome.ImageURL, JSONURL: outcome.JSONURL}
	})
	return out
}

// ProcessText analyzes one digital article and publishes its JSON artifact.
// Advertisements and unknown topics come back with Dropped set.
func (o *Orchestrator) ProcessText(ctx context.Context, taskID string, doc TextDocument) (*TextResponse, error) {
	ctx = middleware.WithTaskID(ctx, taskID)
	start := time.Now()

	res := o.deps.Analyzer.AnalyzeText(ctx, analyze.TextInput{
		Content:  doc.Content,
		Language: doc.Language,
		Heading:  doc.Title,
	})

	switch {
	case res.Error == analyze.ErrAdvertisementFiltered.Error():
		slog.InfoContext(ctx, "digital article filtered as advertisement", "url", doc.URL)
		metrics.ArticlesTotal.WithLabelValues("dropped").Inc()
		o.finish(ModeText, start, nil)
		return &TextResponse{Result: res, Dropped: DroppedAdvertisement}, nil
	case res.Error != "":
		metrics.ArticlesTotal.WithLabelValues("errored").Inc()
		err := errors.New(res.Error)
		o.finish(ModeText, start, err)
		return &TextResponse{Result: res}, err
	case analyze.IsUnknownTopic(res.Topic):
		slog.InfoContext(ctx, "digital article has unknown topic, dropping", "url", doc.URL)
		metrics.ArticlesTotal.WithLabelValues("dropped").Inc()
		o.finish(ModeText, start, nil)
		return &TextResponse{Result: res, Dropped: DroppedUnknownTopic}, nil
	}

	publication := firstNonEmpty(doc.Source, doc.SiteName, "N/A")
	date := digitalDate(res, doc, o.deps.Clock())
	outcome := o.deps.Publisher.Publish(ctx, publish.Item{
		ID:          taskID,
		Publication: publication,
		Date:        date,
		Analysis:    res,
	})
	if outcome.Error != "" {
		slog.WarnContext(ctx, "digital artifact upload failed", "error", outcome.Error)
		metrics.ArticlesTotal.WithLabelValues("errored").Inc()
	} else {
		metrics.ArticlesTotal.WithLabelValues("published").Inc()
	}

	o.finish(ModeText, start, nil)
	return &TextResponse{Result: res, JSONURL: outcome.JSONURL}, nil
}

func (o *Orchestrator) fanOut(n int, fn func(i int)) {
	var g errgroup.Group
	if o.opts.FanoutLimit > 0 {
		g.SetLimit(o.opts.FanoutLimit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) start(ctx context.Context, tr *progress.Tracker, step progress.Step, msg string, details map[string]any) {
	if err := tr.Start(ctx, step, msg, details); err != nil {
		slog.WarnContext(ctx, "progress transition rejected", "step", step, "error", err)
	}
}

func (o *Orchestrator) finish(mode Mode, start time.Time, err error) {
	metrics.DocumentsTotal.WithLabelValues(string(mode), metrics.Outcome(err)).Inc()
	metrics.DocumentDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
}

func failedResponse(doc Document, err error) *Response {
	date := doc.Date
	if date == "" {
		date = analyze.UnknownDate
	}
	return &Response{
		Publication: doc.Publication,
		Edition:     doc.Edition,
		Date:        date,
		Language:    doc.Language,
		ZoneName:    doc.Zone,
		TotalPages:  0,
		Articles:    []PublishedArticle{{Result: analyze.Result{Error: err.Error()}}},
		FileURLs:    []string{},
	}
}

func fileURLs(articles []PublishedArticle) []string {
	seen := map[string]struct{}{}
	urls := []string{}
	for _, a := range articles {
		for _, u := range []string{a.ImageURL, a.JSONURL} {
			if u == "" {
				continue
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	sort.Strings(urls)
	return urls
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
