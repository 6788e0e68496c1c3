package starter

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailureKind classifies why the OS refused to start or stop a plugin
type FailureKind int

const (
	FailureNone FailureKind = iota
	PermissionDenied
	ExecutableNotFound
	ResourceUnavailable
	BlockedByEnvironment
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "None"
	case PermissionDenied:
		return "PermissionDenied"
	case ExecutableNotFound:
		return "ExecutableNotFound"
	case ResourceUnavailable:
		return "ResourceUnavailable"
	case BlockedByEnvironment:
		return "BlockedByEnvironment"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Op names the lifecycle operation a Failure belongs to
type Op string

const (
	OpStart Op = "start"
	OpStop  Op = "stop"
)

// Failure is a classified OS failure. Message is the operator facing
// text, Err the underlying error (stack annotated)
type Failure struct {
	Op      Op
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Expected reports whether the failure is something the operator can
// act upon, as opposed to something nobody saw coming. Unexpected
// failures get their full trace logged
func (f *Failure) Expected() bool {
	return f.Kind == PermissionDenied
}

// StartResult is the outcome of a spawn attempt: either a started
// process, or a classified failure. Exactly one of the two is set
type StartResult struct {
	process Process
	failure *Failure
}

func Started(p Process) StartResult {
	return StartResult{process: p}
}

func Failed(kind FailureKind, message string, err error) StartResult {
	return StartResult{failure: &Failure{Op: OpStart, Kind: kind, Message: message, Err: err}}
}

func (r StartResult) Process() (Process, bool) {
	return r.process, r.failure == nil && r.process != nil
}

func (r StartResult) Failure() (*Failure, bool) {
	return r.failure, r.failure != nil
}

// startFailureMessage is the text shown to the operator
func startFailureMessage(id string, kind FailureKind) string {
	switch kind {
	case PermissionDenied:
		return fmt.Sprintf("Couldn't start EnginePlugin: %s\nNo permission to execute process.", id)
	case ExecutableNotFound:
		return fmt.Sprintf("Unable to find local EnginePlugin server executable for: %s", id)
	case ResourceUnavailable:
		return fmt.Sprintf("Couldn't start EnginePlugin: %s\nResource is temporarily unavailable", id)
	default:
		return fmt.Sprintf("Couldn't start EnginePlugin: %s\nOperating system is blocking it (antivirus?)", id)
	}
}

func stopFailureMessage(id string, kind FailureKind) string {
	switch kind {
	case PermissionDenied:
		return fmt.Sprintf("Unable to kill running EnginePlugin: %s\nAccess is denied.", id)
	default:
		return fmt.Sprintf("Unable to kill running EnginePlugin: %s\nOperating system is blocking it.", id)
	}
}

// classifyStartError maps an error from the spawn primitive onto a
// StartResult failure
func classifyStartError(id string, err error) StartResult {
	kind := classifyError(err)
	return Failed(kind, startFailureMessage(id, kind), errors.WithStack(err))
}
