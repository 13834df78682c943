package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"newsdesk/apps/backend/internal/analyze"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/segment"
)

const DateLayout = "02-01-2006"

// Partition splits analysis results, aligned with crops, into retained
// articles and errored entries, and collects well-formed extracted dates in
// crop order. Unknown-topic results are dropped and their crop file removed.
func Partition(ctx context.Context, crops []segment.Crop, results []analyze.Result) (retained []analyze.Result, errored []PublishedArticle, dates []string) {
	for i, res := range results {
		crop := crops[i]
		if res.CropID == "" {
			res.CropID = crop.ID
		}
		if res.Page == 0 {
			res.Page = crop.Page
		}
		if res.Path == "" {
			res.Path = crop.Path
		}

		if res.Error != "" {
			metrics.ArticlesTotal.WithLabelValues("errored").Inc()
			errored = append(errored, PublishedArticle{Result: res})
			removeCrop(ctx, res.Path)
			continue
		}
		if ValidDate(res.Date) {
			dates = append(dates, res.Date)
		}
		if analyze.IsUnknownTopic(res.Topic) {
			metrics.ArticlesTotal.WithLabelValues("dropped").Inc()
			removeCrop(ctx, res.Path)
			continue
		}
		retained = append(retained, res)
	}
	return retained, errored, dates
}

func ValidDate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// EffectiveDate picks the document date: the external date when well
// formed, else the first extracted one, else today.
func EffectiveDate(external string, extracted []string, now time.Time) string {
	if ValidDate(external) {
		return external
	}
	for _, d := range extracted {
		if ValidDate(d) {
			return d
		}
	}
	return now.Format(DateLayout)
}

func removeCrop(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.WarnContext(ctx, "failed to remove crop", "path", path, "error", err)
	}
}
