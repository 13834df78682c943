// Package analyze turns article crops and digital text into normalized
// Results through the classification oracle.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"newsdesk/apps/backend/internal/imaging"
	"newsdesk/apps/backend/internal/jsonx"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/segment"
)

// Oracle returns raw model text for each kind of request.
type Oracle interface {
	AnalyzeImage(ctx context.Context, jpeg []byte, language string) (string, error)
	AnalyzeText(ctx context.Context, prompt string) (string, error)
	CheckTextAd(ctx context.Context, text string) (string, error)
}

type Options struct {
	MaxDimension int
	Quality      int
	// Topics is the taxonomy results are held to; empty means DefaultTopics.
	Topics []string
}

func DefaultOptions() Options {
	return Options{MaxDimension: 2000, Quality: 85}
}

type Analyzer struct {
	oracle Oracle
	opts   Options
	topics *Taxonomy
}

func New(oracle Oracle, opts Options) *Analyzer {
	return &Analyzer{oracle: oracle, opts: opts, topics: NewTaxonomy(opts.Topics)}
}

type TextInput struct {
	Content  string
	Language string
	Heading  string
}

// AnalyzeCrop runs one crop through the oracle. Failures are reported in
// Result.Error, never returned.
func (a *Analyzer) AnalyzeCrop(ctx context.Context, crop segment.Crop, language string) (res Result) {
	base := Result{CropID: crop.ID, Page: crop.Page, Path: crop.Path}
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "crop analysis panicked", "crop_id", crop.ID, "panic", r)
			res = base
			res.Error = fmt.Sprintf("unexpected image analysis error: %v", r)
		}
	}()

	if crop.Path == "" {
		return withError(base, "article crop image file not found")
	}
	if _, err := os.Stat(crop.Path); err != nil {
		return withError(base, "article crop image file not found")
	}

	img, err := imaging.Load(crop.Path)
	if err != nil {
		return withError(base, fmt.Sprintf("load crop: %v", err))
	}
	img = imaging.FitWithin(img, a.opts.MaxDimension)
	payload, err := imaging.EncodeJPEG(img, a.opts.Quality)
	if err != nil {
		return withError(base, fmt.Sprintf("encode crop: %v", err))
	}

	start := time.Now()
	raw, err := a.oracle.AnalyzeImage(ctx, payload, language)
	metrics.ObserveOracle("classification", start, err)
	if err != nil {
		slog.WarnContext(ctx, "classification oracle failed", "crop_id", crop.ID, "error", err)
		return withError(base, fmt.Sprintf("classification oracle error: %v", err))
	}
	if strings.TrimSpace(raw) == "" {
		return withError(base, "classification oracle returned empty text")
	}

	art, err := Classify(raw)
	if err != nil {
		return parseFailure(ctx, base, err, raw)
	}
	res = normalize(ctx, art, language, a.topics)
	res.CropID, res.Page, res.Path = crop.ID, crop.Page, crop.Path
	return res
}

// AnalyzeText classifies one digital article. Content the ad check flags is
// returned with ErrAdvertisementFiltered as its error.
func (a *Analyzer) AnalyzeText(ctx context.Context, in TextInput) Result {
	if a.isTextAd(ctx, in.Content) {
		metrics.AdsFiltered.WithLabelValues("text").Inc()
		return Result{Error: ErrAdvertisementFiltered.Error()}
	}

	start := time.Now()
	raw, err := a.oracle.AnalyzeText(ctx, TextPrompt(in))
	metrics.ObserveOracle("classification", start, err)
	if err != nil {
		return Result{Error: fmt.Sprintf("digital text analysis failed: %v", err)}
	}
	if strings.TrimSpace(raw) == "" {
		return Result{Error: "classification oracle returned empty text"}
	}

	art, err := Classify(raw)
	if err != nil {
		return parseFailure(ctx, Result{}, err, raw)
	}
	res := normalize(ctx, art, in.Language, a.topics)
	if res.Heading == "" {
		res.Heading = in.Heading
	}
	if res.Content == "" {
		res.Content = in.Content
	}
	return res
}

func (a *Analyzer) isTextAd(ctx context.Context, text string) bool {
	start := time.Now()
	raw, err := a.oracle.CheckTextAd(ctx, text)
	metrics.ObserveOracle("ad_check", start, err)
	if err != nil {
		slog.WarnContext(ctx, "text ad check failed, continuing", "error", err)
		return false
	}
	obj, _, err := jsonx.Extract(raw)
	if err != nil {
		slog.WarnContext(ctx, "text ad check answer unparseable, continuing", "error", err)
		return false
	}
	isAd, _ := obj["is_advertisement"].(bool)
	if isAd {
		slog.InfoContext(ctx, "text classified as advertisement", "confidence", jsonx.String(obj, "confidence"))
	}
	return isAd
}

// TextPrompt frames digital article text for the text model.
func TextPrompt(in TextInput) string {
	var b strings.Builder
	if in.Heading != "" {
		fmt.Fprintf(&b, "Original Article Heading: %s\n", in.Heading)
	}
	if in.Language != "" {
		fmt.Fprintf(&b, "Original Article Language: %s\n", in.Language)
	}
	b.WriteString("\nArticle Content to Analyze:\n---\n")
	b.WriteString(in.Content)
	b.WriteString("\n---\nPlease provide your analysis in the specified JSON format based on the system instruction.")
	return b.String()
}

func normalize(ctx context.Context, art ExtractedArticle, language string, tax *Taxonomy) Result {
	method := jsonx.MethodDirect
	if p, ok := art.(HeuristicParsed); ok {
		method = p.Method
	}
	slog.DebugContext(ctx, "oracle answer parsed", "method", method)

	f := art.Fields()
	res := Result{
		Language:       f.Language,
		Heading:        f.Heading,
		Content:        f.Content,
		EnglishHeading: f.EnglishHeading,
		EnglishContent: f.EnglishContent,
		EnglishSummary: f.EnglishSummary,
		Sentiment:      normalizeSentiment(f.Sentiment),
		Date:           strings.TrimSpace(f.Date),
	}
	if res.Language == "" {
		res.Language = language
	}
	if res.Date == "" {
		res.Date = UnknownDate
	}
	res.Topic, res.SecondaryTopics = TopicsFrom(f.Topics, tax)
	if res.Topic == UnknownTopic && len(f.Topics) > 0 && !IsUnknownTopic(f.Topics[0]) {
		slog.InfoContext(ctx, "topic outside taxonomy", "topic", f.Topics[0])
	}
	return res
}

func withError(r Result, msg string) Result {
	r.Error = msg
	return r
}

func parseFailure(ctx context.Context, r Result, err error, raw string) Result {
	r.Error = err.Error()
	var perr *jsonx.ParseError
	if errors.As(err, &perr) {
		r.RawSnippet = perr.Snippet
	} else {
		r.RawSnippet = jsonx.Snippet(raw)
	}
	slog.WarnContext(ctx, "oracle answer unparseable", "crop_id", r.CropID, "snippet_len", len(r.RawSnippet))
	return r
}
