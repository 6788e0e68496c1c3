//go:build !windows

package starter

import "syscall"

func addPlatformDependentNiceSigNames(v map[syscall.Signal]string) map[syscall.Signal]string {
	v[syscall.SIGUSR1] = "USR1"
	v[syscall.SIGUSR2] = "USR2"
	v[syscall.SIGWINCH] = "WINCH"
	return v
}
