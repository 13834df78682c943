//go:build unix

package raster

import (
	"os/exec"
	"syscall"
	"time"
)

// isolate starts cmd in its own process group and makes context
// cancellation kill that group, so no descendant outlives a timeout.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second
}
