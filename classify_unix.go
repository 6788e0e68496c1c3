//go:build !windows

package starter

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// isResourceUnavailable reports transient blocking I/O conditions.
// EWOULDBLOCK is EAGAIN on every supported platform
func isResourceUnavailable(err error) bool {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return false
	}
	switch errno {
	case unix.EAGAIN, unix.EALREADY, unix.EINPROGRESS:
		return true
	}
	return false
}
