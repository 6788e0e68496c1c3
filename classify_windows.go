//go:build windows

package starter

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// isResourceUnavailable reports transient blocking I/O conditions
func isResourceUnavailable(err error) bool {
	var errno windows.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case windows.WSAEWOULDBLOCK, windows.WSAEALREADY, windows.WSAEINPROGRESS:
		return true
	}
	return false
}
