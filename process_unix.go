//go:build !windows

package starter

import (
	"os"
	"os/exec"
	"syscall"
)

// The plugin gets its own process group so that a ^C aimed at the
// host does not reach it before the host had a chance to stop it
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process, sig os.Signal) error {
	return p.Signal(sig)
}
