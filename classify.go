package starter

import (
	"io/fs"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

var errEmptyCommand = errors.New("empty command")

// classifyError maps OS errors onto a FailureKind. Errors that do not
// fall into any of the known buckets are considered to be the
// environment getting in the way
func classifyError(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, fs.ErrPermission):
		return PermissionDenied
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, errEmptyCommand):
		return ExecutableNotFound
	case isResourceUnavailable(err):
		return ResourceUnavailable
	default:
		return BlockedByEnvironment
	}
}

// isProcessDone is true when the process went away before we got to
// signal it. There is nothing left to stop in that case, only to reap
func isProcessDone(err error) bool {
	return errors.Is(err, os.ErrProcessDone)
}
