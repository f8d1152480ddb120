//go:build !unix

package worker

import "os/exec"

// isolate falls back to killing only the worker process itself.
func isolate(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
