//go:build windows

package starter

import "syscall"

func addPlatformDependentNiceSigNames(v map[syscall.Signal]string) map[syscall.Signal]string {
	return v
}
