package starter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lestrrat-go/engine-starter/internal/env"
	"github.com/lestrrat-go/engine-starter/listener"
	"github.com/pkg/errors"
)

// Environment variables handed to every plugin process, on top of
// the command line flags
const (
	EnvPluginID      = "ENGINE_PLUGIN_ID"
	EnvPluginAddress = listener.EnvAddress
	EnvPluginPort    = listener.EnvPort
)

// New creates a Supervisor for the plugin identified by id. The
// supervisor starts out stopped
func New(id string, options ...Option) *Supervisor {
	s := &Supervisor{
		id:         id,
		address:    DefaultAddress,
		stopSignal: syscall.SIGTERM,
		notifier:   NopNotifier(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    NewNoopMetricsCollector(),
	}

	var envdir string
	for _, opt := range options {
		switch opt.Name() {
		case optkeyAddress:
			s.address = opt.Value().(string)
		case optkeyCommand:
			s.command = opt.Value().([]string)
		case optkeyDir:
			s.dir = opt.Value().(string)
		case optkeyEnvdir:
			envdir = opt.Value().(string)
		case optkeyLogger:
			if l := opt.Value().(*slog.Logger); l != nil {
				s.logger = l
			}
		case optkeyMetrics:
			if m := opt.Value().(MetricsCollector); m != nil {
				s.metrics = m
			}
		case optkeyNotifier:
			if n := opt.Value().(Notifier); n != nil {
				s.notifier = n
			}
		case optkeyPort:
			s.port = opt.Value().(int)
		case optkeySettings:
			s.settings = opt.Value().(SettingsProvider)
		case optkeySlots:
			s.slots = opt.Value().([]int)
		case optkeySpawner:
			s.spawner = opt.Value().(Spawner)
		case optkeyStopSignal:
			if sig := opt.Value().(os.Signal); sig != nil {
				s.stopSignal = sig
			}
		case optkeyStopTimeout:
			s.stopTimeout = opt.Value().(time.Duration)
		}
	}

	if s.spawner == nil {
		s.spawner = NewExecSpawner(s.stopSignal)
	}
	s.envLoader = env.NewLoader(envdir)
	return s
}

func (s *Supervisor) ID() string {
	return s.id
}

func (s *Supervisor) Address() string {
	return s.address
}

// SetAddress changes the address handed to the plugin. It has no
// effect while the plugin is running
func (s *Supervisor) SetAddress(addr string) {
	if s.running {
		s.logger.Warn("ignoring address change of running engine plugin", "plugin", s.id, "address", addr)
		return
	}
	s.address = addr
}

func (s *Supervisor) Port() int {
	return s.port
}

// SetPort assigns the port handed to the plugin. The port of a
// running plugin is never renegotiated, so this has no effect while
// the plugin is running
func (s *Supervisor) SetPort(port int) {
	if s.running {
		s.logger.Warn("ignoring port change of running engine plugin", "plugin", s.id, "port", port)
		return
	}
	s.port = port
}

// Command returns a copy of the configured command template
func (s *Supervisor) Command() []string {
	if s.command == nil {
		return nil
	}
	return append([]string(nil), s.command...)
}

func (s *Supervisor) SupportedSlots() []int {
	return s.slots
}

func (s *Supervisor) SetSupportedSlots(l []int) {
	s.slots = l
}

func (s *Supervisor) Settings() SettingsProvider {
	return s.settings
}

func (s *Supervisor) IsRunning() bool {
	return s.running
}

// Pid returns the pid of the running plugin, or 0
func (s *Supervisor) Pid() int {
	if s.process == nil {
		return 0
	}
	return s.process.Pid()
}

// LastFailure returns the failure reported by the latest Start or
// Stop call, if that call failed
func (s *Supervisor) LastFailure() *Failure {
	return s.lastFailure
}

// Start launches the plugin process. Failures are logged, sent to the
// notifier, and reported as false; they are never retried.
// Starting a running plugin does nothing and reports true
func (s *Supervisor) Start() bool {
	if s.running {
		s.logger.Warn("engine plugin is already running", "plugin", s.id, "pid", s.Pid())
		return true
	}

	argv := s.ResolvedCommand()
	result := s.spawn(argv)
	if f, ok := result.Failure(); ok {
		s.reportFailure(f)
		s.metrics.PluginStartFailed(s.id, f.Kind)
		return false
	}

	p, _ := result.Process()
	s.process = p
	s.running = true
	s.lastFailure = nil
	s.logger.Info("started engine plugin",
		"plugin", s.id,
		"command", strings.Join(argv, " "),
		"pid", p.Pid(),
	)
	s.metrics.PluginStarted(s.id)
	return true
}

func (s *Supervisor) spawn(argv []string) StartResult {
	if len(argv) == 0 {
		return Failed(ExecutableNotFound, startFailureMessage(s.id, ExecutableNotFound), errors.WithStack(errEmptyCommand))
	}

	extra := []string{
		EnvPluginID + "=" + s.id,
		EnvPluginAddress + "=" + s.address,
	}
	if s.port != 0 {
		extra = append(extra, EnvPluginPort+"="+strconv.Itoa(s.port))
	}
	environ, err := s.envLoader.Environ(extra...)
	if err != nil {
		// a broken envdir should not keep the plugin from starting
		s.logger.Warn("failed to load envdir", "plugin", s.id, "error", err)
	}

	p, err := s.spawner.Spawn(SpawnSpec{Argv: argv, Dir: s.dir, Env: environ})
	if err != nil {
		return classifyStartError(s.id, err)
	}
	return Started(p)
}

// Stop asks the plugin process to terminate and waits until it has
// exited. Stopping a plugin that is not running succeeds.
// If the OS refuses the terminate request, the supervisor keeps its
// current state and Stop reports false
func (s *Supervisor) Stop() bool {
	if s.process == nil {
		s.running = false
		return true
	}

	startedAt := time.Now()
	if err := s.process.Terminate(); err != nil && !isProcessDone(err) {
		s.failStop(s.stopFailure(err))
		return false
	}

	code, err := s.wait()
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			s.failStop(f)
			return false
		}
		s.logger.Warn("error while reaping engine plugin", "plugin", s.id, "error", err)
	}

	s.process = nil
	s.running = false
	s.lastFailure = nil
	s.logger.Debug(fmt.Sprintf("engine plugin was stopped, received return code %d", code),
		"plugin", s.id,
		"exit_code", code,
	)
	s.metrics.PluginStopped(s.id, code, time.Since(startedAt))
	return true
}

// stopFailure classifies an error from the terminate or kill
// primitives. Anything but a permission problem counts as the
// environment blocking us
func (s *Supervisor) stopFailure(err error) *Failure {
	kind := classifyError(err)
	if kind != PermissionDenied {
		kind = BlockedByEnvironment
	}
	return &Failure{Op: OpStop, Kind: kind, Message: stopFailureMessage(s.id, kind), Err: errors.WithStack(err)}
}

func (s *Supervisor) failStop(f *Failure) {
	s.reportFailure(f)
	s.metrics.PluginStopFailed(s.id, f.Kind)
}

type waitResult struct {
	code int
	err  error
}

// wait reaps the process, killing it once the stop timeout elapses.
// A failed kill is returned as a *Failure
func (s *Supervisor) wait() (int, error) {
	if s.stopTimeout <= 0 {
		return s.process.Wait()
	}

	p := s.process
	ch := make(chan waitResult, 1)
	go func() {
		code, err := p.Wait()
		ch <- waitResult{code: code, err: err}
	}()

	t := time.NewTimer(s.stopTimeout)
	defer t.Stop()
	select {
	case r := <-ch:
		return r.code, r.err
	case <-t.C:
	}

	s.logger.Warn("engine plugin did not exit in time, killing it",
		"plugin", s.id,
		"timeout", s.stopTimeout,
	)
	s.metrics.PluginKilled(s.id)
	if err := p.Kill(); err != nil && !isProcessDone(err) {
		return 0, s.stopFailure(err)
	}
	r := <-ch
	return r.code, r.err
}

// reportFailure logs f and forwards it to the notifier. Failures
// nobody expected get their full trace logged
func (s *Supervisor) reportFailure(f *Failure) {
	s.lastFailure = f

	attrs := []interface{}{
		"plugin", s.id,
		"op", string(f.Op),
		"kind", f.Kind.String(),
	}
	if f.Err != nil {
		attrs = append(attrs, "error", f.Err.Error())
		if !f.Expected() {
			attrs = append(attrs, "trace", fmt.Sprintf("%+v", f.Err))
		}
	}
	s.logger.Error(strings.ReplaceAll(f.Message, "\n", " "), attrs...)

	s.notifier.Notify(Notification{
		Title:    notificationTitle,
		Text:     f.Message,
		Severity: SeverityError,
		Kind:     f.Kind,
	})
}
