package starter

import (
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

type execSpawner struct {
	stopSignal os.Signal
}

// NewExecSpawner creates the default Spawner, backed by os/exec.
// sig is the signal used to request a graceful shutdown (unix only)
func NewExecSpawner(sig os.Signal) Spawner {
	if sig == nil {
		sig = syscall.SIGTERM
	}
	return &execSpawner{stopSignal: sig}
}

func (s *execSpawner) Spawn(spec SpawnSpec) (Process, error) {
	if len(spec.Argv) == 0 {
		return nil, errEmptyCommand
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	// plugins talk over their socket, never over stdin
	cmd.Stdin = nil
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execProcess{
		cmd:        cmd,
		stopSignal: s.stopSignal,
	}, nil
}

type execProcess struct {
	cmd        *exec.Cmd
	stopSignal os.Signal

	waitOnce sync.Once
	code     int
	err      error
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Terminate() error {
	return terminateProcess(p.cmd.Process, p.stopSignal)
}

func (p *execProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *execProcess) Wait() (int, error) {
	p.waitOnce.Do(func() {
		err := p.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.err = errors.Wrapf(err, "failed to wait for process %d", p.cmd.Process.Pid)
		}
		if p.cmd.ProcessState == nil {
			p.code = -1
			return
		}
		p.code = grabExitCode(p.cmd.ProcessState)
	})
	return p.code, p.err
}

type processState interface {
	ExitCode() int
	Sys() interface{}
}

// grabExitCode returns the exit code of the process. Processes that
// were killed by a signal report the negated signal number
func grabExitCode(st processState) int {
	if ws, ok := st.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return st.ExitCode()
}
