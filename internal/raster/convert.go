package raster

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"newsdesk/apps/backend/internal/imaging"
)

// convertDir turns every page-NNN.png in dir into a JPEG next to it. A page
// that fails to convert is dropped; a directory with nothing usable is
// ErrEmptyRange.
func (z *Rasterizer) convertDir(ctx context.Context, dir string) ([]Page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		pages []Page
	)
	g := new(errgroup.Group)
	g.SetLimit(z.opts.ConvertWorkers)

	for _, e := range entries {
		num, ok := pageNumber(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		src := filepath.Join(dir, e.Name())
		g.Go(func() error {
			dst, err := z.convertPage(src, num)
			if err != nil {
				slog.WarnContext(ctx, "page conversion failed", "page", num, "error", err)
				return nil
			}
			mu.Lock()
			pages = append(pages, Page{Number: num, Path: dst, DPI: z.opts.DPI})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(pages) == 0 {
		return nil, ErrEmptyRange
	}
	return pages, nil
}

func (z *Rasterizer) convertPage(src string, num int) (string, error) {
	img, err := imaging.Load(src)
	if err != nil {
		return "", err
	}
	if z.opts.Resize {
		img = imaging.FitWithin(img, z.opts.MaxDimension)
	}

	dst := filepath.Join(filepath.Dir(src), fmt.Sprintf("page-%03d_%s.jpg", num, RandomHex(3)))
	if err := imaging.SaveJPEG(dst, img, z.opts.Quality); err != nil {
		return "", err
	}
	_ = os.Remove(src)
	return dst, nil
}

// RandomHex returns 2n lowercase hex characters.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
