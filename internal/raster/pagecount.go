package raster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var ErrPageCount = errors.New("could not determine page count")

// PDFCPUCounter reads the page tree with pdfcpu.
type PDFCPUCounter struct{}

func (PDFCPUCounter) PageCount(_ context.Context, pdfPath string) (int, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n, err := api.PageCount(f, model.NewDefaultConfiguration())
	if err != nil {
		return 0, fmt.Errorf("pdfcpu: %w", err)
	}
	return n, nil
}

// MutoolInfoCounter parses the "Pages:" line of `mutool info`. It copes with
// damaged files that pdfcpu refuses to validate but mutool still renders.
type MutoolInfoCounter struct {
	Binary string
}

func (c MutoolInfoCounter) PageCount(ctx context.Context, pdfPath string) (int, error) {
	binary := c.Binary
	if binary == "" {
		binary = "mutool"
	}
	out, err := exec.CommandContext(ctx, binary, "info", pdfPath).Output()
	if err != nil {
		return 0, fmt.Errorf("mutool info: %w", err)
	}
	return ParseMutoolPages(out)
}

func ParseMutoolPages(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		rest, ok := strings.CutPrefix(line, "Pages:")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrPageCount, line)
		}
		return n, nil
	}
	return 0, ErrPageCount
}

// FallbackCounter asks each counter in turn and returns the first positive
// answer.
type FallbackCounter []PageCounter

func (f FallbackCounter) PageCount(ctx context.Context, pdfPath string) (int, error) {
	var errs []error
	for _, c := range f {
		n, err := c.PageCount(ctx, pdfPath)
		if err == nil && n > 0 {
			return n, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return 0, ErrPageCount
	}
	return 0, fmt.Errorf("%w: %w", ErrPageCount, errors.Join(errs...))
}
