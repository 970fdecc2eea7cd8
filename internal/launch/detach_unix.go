//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// detach starts the child in its own session so it has no controlling
// terminal and survives the launcher exiting.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}
}
