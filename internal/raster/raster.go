// Package raster turns paginated PDF documents into JPEG page images by
// driving mutool in bounded, retryable page-range batches.
package raster

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
	"time"

	"newsdesk/apps/backend/internal/metrics"
)

var (
	ErrNoPages      = errors.New("rasterization produced no pages")
	ErrRangeTimeout = errors.New("page range timed out")
	ErrEmptyRange   = errors.New("page range produced no images")
)

type Page struct {
	Number int
	Path   string
	DPI    int
}

// Range is an inclusive, 1-based span of pages.
type Range struct {
	First int
	Last  int
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.First, r.Last)
}

type RangeRequest struct {
	PDFPath string
	OutDir  string
	Range   Range
	DPI     int
}

// RangeRunner renders one page range into OutDir as page-NNN.png files.
type RangeRunner interface {
	RunRange(ctx context.Context, req RangeRequest) error
}

type PageCounter interface {
	PageCount(ctx context.Context, pdfPath string) (int, error)
}

type Options struct {
	MutoolPath     string
	DPI            int
	Quality        int
	Resize         bool
	MaxDimension   int
	ChunkSize      int
	Timeout        time.Duration
	MemoryLimitMB  int
	MaxRetries     int
	ConvertWorkers int
}

func DefaultOptions() Options {
	return Options{
		MutoolPath:     "mutool",
		DPI:            200,
		Quality:        85,
		Resize:         true,
		MaxDimension:   3000,
		ChunkSize:      3,
		Timeout:        90 * time.Second,
		MemoryLimitMB:  1500,
		MaxRetries:     3,
		ConvertWorkers: 4,
	}
}

type Rasterizer struct {
	opts    Options
	runner  RangeRunner
	counter PageCounter
}

type Option func(*Rasterizer)

func WithRunner(r RangeRunner) Option {
	return func(z *Rasterizer) { z.runner = r }
}

func WithCounter(c PageCounter) Option {
	return func(z *Rasterizer) { z.counter = c }
}

func New(opts Options, options ...Option) *Rasterizer {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 1
	}
	if opts.ConvertWorkers < 1 {
		opts.ConvertWorkers = 1
	}
	z := &Rasterizer{opts: opts}
	for _, o := range options {
		o(z)
	}
	if z.runner == nil {
		z.runner = &ExecRunner{Binary: opts.MutoolPath, Timeout: opts.Timeout, MemoryLimitMB: opts.MemoryLimitMB}
	}
	if z.counter == nil {
		z.counter = FallbackCounter{PDFCPUCounter{}, MutoolInfoCounter{Binary: opts.MutoolPath}}
	}
	return z
}

// WithRender returns a copy of the rasterizer using a per-document DPI,
// quality and resize flag.
func (z *Rasterizer) WithRender(dpi, quality int, resize bool) *Rasterizer {
	c := *z
	if dpi > 0 {
		c.opts.DPI = dpi
	}
	if quality > 0 {
		c.opts.Quality = quality
	}
	c.opts.Resize = resize
	return &c
}

// Render is the per-document subset of Options.
type Render struct {
	DPI     int
	Quality int
	Resize  bool
}

// RasterizeDocument rasterizes pdfPath with the document's render settings.
func (z *Rasterizer) RasterizeDocument(ctx context.Context, pdfPath, outDir string, r Render) ([]Page, error) {
	return z.WithRender(r.DPI, r.Quality, r.Resize).Rasterize(ctx, pdfPath, outDir)
}

// Chunk partitions pages 1..total into contiguous ranges of size pages.
func Chunk(total, size int) []Range {
	if size < 1 {
		size = 1
	}
	var ranges []Range
	for first := 1; first <= total; first += size {
		ranges = append(ranges, Range{First: first, Last: min(first+size-1, total)})
	}
	return ranges
}

// Rasterize renders every page it can. Page ranges that keep failing after
// MaxRetries retry passes are left out of the result; only a run that yields
// no page at all is an error.
func (z *Rasterizer) Rasterize(ctx context.Context, pdfPath, outDir string) ([]Page, error) {
	total, err := z.counter.PageCount(ctx, pdfPath)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if total <= 0 {
		return nil, ErrNoPages
	}
	slog.InfoContext(ctx, "rasterizing document", "pdf", filepath.Base(pdfPath), "pages", total, "dpi", z.opts.DPI, "chunk_size", z.opts.ChunkSize)

	pending := Chunk(total, z.opts.ChunkSize)
	var pages []Page

	for pass := 0; pass <= z.opts.MaxRetries && len(pending) > 0; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pass > 0 {
			slog.InfoContext(ctx, "retrying failed page ranges", "pass", pass, "ranges", len(pending))
		}

		var failed []Range
		for _, rg := range pending {
			got, err := z.renderRange(ctx, pdfPath, outDir, rg, pass)
			if err != nil {
				slog.WarnContext(ctx, "page range failed", "range", rg.String(), "pass", pass, "error", err)
				metrics.RangeFailures.WithLabelValues(failureReason(err)).Inc()
				failed = append(failed, rg)
				continue
			}
			pages = append(pages, got...)
		}
		pending = failed
	}

	for _, rg := range pending {
		slog.WarnContext(ctx, "page range omitted after retries", "range", rg.String(), "max_retries", z.opts.MaxRetries)
	}

	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	metrics.PagesRasterized.Add(float64(len(pages)))
	slog.InfoContext(ctx, "rasterization finished", "pages", len(pages), "expected", total)
	return pages, nil
}

func (z *Rasterizer) renderRange(ctx context.Context, pdfPath, outDir string, rg Range, pass int) ([]Page, error) {
	dir := filepath.Join(outDir, fmt.Sprintf("range_%03d_%03d_%d", rg.First, rg.Last, pass))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	err := z.runner.RunRange(ctx, RangeRequest{PDFPath: pdfPath, OutDir: dir, Range: rg, DPI: z.opts.DPI})
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	pages, err := z.convertDir(ctx, dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return pages, nil
}

var pagePNG = regexp.MustCompile(`^page-(\d+)\.png$`)

// pageNumber extracts NNN from page-NNN.png.
func pageNumber(name string) (int, bool) {
	m := pagePNG.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrRangeTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyRange):
		return "empty"
	default:
		return "exit"
	}
}
