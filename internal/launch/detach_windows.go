//go:build windows

package launch

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// detach starts the child in its own process group without a console
// window, so closing the launcher does not signal it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | createNoWindow,
		HideWindow:    true,
	}
}
