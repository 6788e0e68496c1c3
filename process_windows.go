//go:build windows

package starter

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW,
	}
}

// windows has no graceful terminate request for console-less
// processes, TerminateProcess is as polite as it gets
func terminateProcess(p *os.Process, _ os.Signal) error {
	return p.Kill()
}
