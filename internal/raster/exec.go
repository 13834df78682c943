package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// drawScript applies the address-space ceiling in the shell and then execs
// mutool so the limit covers it and everything it spawns.
const drawScript = `ulimit -v "$1" && exec "$2" draw -r "$3" -o "$4" "$5" "$6"`

// ExecRunner runs mutool draw for one page range with a wall-clock timeout
// and a virtual memory ceiling. On timeout the whole process group is
// killed.
type ExecRunner struct {
	Binary        string
	Timeout       time.Duration
	MemoryLimitMB int
}

func (r *ExecRunner) command(ctx context.Context, req RangeRequest) *exec.Cmd {
	binary := r.Binary
	if binary == "" {
		binary = "mutool"
	}
	pattern := filepath.Join(req.OutDir, "page-%03d.png")
	pageRange := req.Range.String()

	if r.MemoryLimitMB > 0 {
		return exec.CommandContext(ctx, "sh", "-c", drawScript, "sh",
			strconv.Itoa(r.MemoryLimitMB*1024), binary, strconv.Itoa(req.DPI), pattern, req.PDFPath, pageRange)
	}
	return exec.CommandContext(ctx, binary, "draw", "-r", strconv.Itoa(req.DPI), "-o", pattern, req.PDFPath, pageRange)
}

func (r *ExecRunner) RunRange(ctx context.Context, req RangeRequest) error {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := r.command(runCtx, req)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	isolate(cmd)

	err := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: pages %s", ErrRangeTimeout, r.Timeout, req.Range)
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			n := 500
			for n > 0 && !utf8.RuneStart(msg[n]) {
				n--
			}
			msg = msg[:n]
		}
		return fmt.Errorf("mutool draw pages %s: %w: %s", req.Range, err, msg)
	}
	return nil
}
