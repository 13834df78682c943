// Package segment cuts article crops out of a page image using the regions
// returned by the segmentation oracle.
package segment

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"newsdesk/apps/backend/internal/imaging"
	"newsdesk/apps/backend/internal/metrics"
	"newsdesk/apps/backend/internal/raster"
)

const AdvertisingLabel = "advertising"

type Block struct {
	Label  string    `json:"label"`
	Bounds []float64 `json:"bounds"`
}

type Article struct {
	Blocks []Block `json:"blocks"`
}

type Response struct {
	Articles []Article `json:"articles"`
	Message  string    `json:"message,omitempty"`
}

// Oracle returns the article regions found on one page image. Bounds are
// normalized [x_min, y_min, x_max, y_max] in [0,1].
type Oracle interface {
	Segment(ctx context.Context, image []byte, dpi int) (*Response, error)
}

type Crop struct {
	ID     string          `json:"unique_article_id"`
	Page   int             `json:"pagenumber"`
	Path   string          `json:"path"`
	Bounds image.Rectangle `json:"-"`
}

type Options struct {
	MaxDimension int
	Quality      int
	MinBlockSize int
	MinUnionSize int
}

func DefaultOptions() Options {
	return Options{MaxDimension: 3000, Quality: 85, MinBlockSize: 5, MinUnionSize: 10}
}

type Segmenter struct {
	oracle Oracle
	opts   Options
}

func New(oracle Oracle, opts Options) *Segmenter {
	return &Segmenter{oracle: oracle, opts: opts}
}

// Process segments one page and writes a JPEG per surviving article into
// outDir. Finding nothing is not an error.
func (s *Segmenter) Process(ctx context.Context, page raster.Page, idPrefix, outDir string) ([]Crop, error) {
	img, err := imaging.Load(page.Path)
	if err != nil {
		return nil, err
	}
	if imaging.Exceeds(img, s.opts.MaxDimension) {
		b := img.Bounds()
		img = imaging.FitWithin(img, s.opts.MaxDimension)
		slog.DebugContext(ctx, "downscaled page for segmentation", "page", page.Number,
			"from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), "to", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()))
	}

	payload, err := imaging.EncodeJPEG(img, 90)
	if err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page.Number, err)
	}

	start := time.Now()
	resp, err := s.oracle.Segment(ctx, payload, page.DPI)
	metrics.ObserveOracle("segmentation", start, err)
	if err != nil {
		return nil, fmt.Errorf("segment page %d: %w", page.Number, err)
	}
	if resp == nil || resp.Articles == nil {
		msg := "empty response"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		slog.WarnContext(ctx, "segmentation returned no articles", "page", page.Number, "message", msg)
		return nil, nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}

	var crops []Crop
	for i, art := range resp.Articles {
		if len(art.Blocks) == 0 {
			continue
		}
		if IsAdvertisement(art.Blocks) {
			metrics.AdsFiltered.WithLabelValues("segment").Inc()
			continue
		}
		rect, ok := s.Union(art.Blocks, img.Bounds().Dx(), img.Bounds().Dy())
		if !ok {
			continue
		}

		id := CropID(idPrefix, page.Number, i, raster.RandomHex(3))
		path := filepath.Join(outDir, id+".jpg")
		if err := imaging.SaveJPEG(path, imaging.Crop(img, rect), s.opts.Quality); err != nil {
			slog.WarnContext(ctx, "failed to save crop", "page", page.Number, "crop_id", id, "error", err)
			continue
		}
		crops = append(crops, Crop{ID: id, Page: page.Number, Path: path, Bounds: rect})
	}

	metrics.CropsEmitted.Add(float64(len(crops)))
	slog.InfoContext(ctx, "page segmented", "page", page.Number, "regions", len(resp.Articles), "crops", len(crops))
	return crops, nil
}

// IsAdvertisement applies the article-level ad filter: more than half of the
// blocks labeled advertising, or a lone advertising block.
func IsAdvertisement(blocks []Block) bool {
	total := len(blocks)
	if total == 0 {
		return false
	}
	ads := 0
	for _, b := range blocks {
		if strings.EqualFold(strings.TrimSpace(b.Label), AdvertisingLabel) {
			ads++
		}
	}
	if total == 1 {
		return ads == 1
	}
	return float64(ads)/float64(total) > 0.5
}

// Union converts block bounds to pixels and merges them. Blocks not larger
// than MinBlockSize on both sides are ignored. The union is clipped to the
// page and must then be at least MinUnionSize on both sides.
func (s *Segmenter) Union(blocks []Block, width, height int) (image.Rectangle, bool) {
	var union image.Rectangle
	found := false
	for _, b := range blocks {
		if len(b.Bounds) != 4 {
			continue
		}
		x0, y0 := int(b.Bounds[0]*float64(width)), int(b.Bounds[1]*float64(height))
		x1, y1 := int(b.Bounds[2]*float64(width)), int(b.Bounds[3]*float64(height))
		if x1-x0 <= s.opts.MinBlockSize || y1-y0 <= s.opts.MinBlockSize {
			continue
		}
		r := image.Rectangle{Min: image.Pt(x0, y0), Max: image.Pt(x1, y1)}
		if !found {
			union, found = r, true
			continue
		}
		union = union.Union(r)
	}
	union = union.Intersect(image.Rect(0, 0, width, height))
	if !found || union.Dx() < s.opts.MinUnionSize || union.Dy() < s.opts.MinUnionSize {
		return image.Rectangle{}, false
	}
	return union, true
}

// CropID builds {prefix}_p{page}_crop{index+1}_{suffix}.
func CropID(prefix string, page, index int, suffix string) string {
	return fmt.Sprintf("%s_p%03d_crop%03d_%s", prefix, page, index+1, suffix)
}
