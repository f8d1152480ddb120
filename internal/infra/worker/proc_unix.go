//go:build unix

package worker

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// isolate starts the worker in its own process group so cancellation kills
// the worker and anything it spawned.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
