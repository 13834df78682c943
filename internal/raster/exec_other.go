//go:build !unix

package raster

import (
	"os/exec"
	"time"
)

func isolate(cmd *exec.Cmd) {
	cmd.WaitDelay = 5 * time.Second
}
