package starter

import (
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervisorDefaults(t *testing.T) {
	s := New("slicer")
	assert.Equal(t, "slicer", s.ID())
	assert.Equal(t, "127.0.0.1", s.Address())
	assert.Equal(t, 0, s.Port())
	assert.False(t, s.IsRunning())
	assert.Equal(t, 0, s.Pid())
	assert.Nil(t, s.Command())
	assert.Empty(t, s.SupportedSlots())
	assert.Nil(t, s.LastFailure())
}

func TestSupervisorAccessors(t *testing.T) {
	f := newFixture()
	s := f.supervisor("slicer", WithCommand("exe"), WithSupportedSlots(100, 101))

	s.SetPort(9000)
	s.SetAddress("::1")
	assert.Equal(t, 9000, s.Port())
	assert.Equal(t, "::1", s.Address())
	assert.Equal(t, []int{100, 101}, s.SupportedSlots())

	s.SetSupportedSlots([]int{7})
	assert.Equal(t, []int{7}, s.SupportedSlots())

	require.True(t, s.Start())
	s.SetPort(1234)
	s.SetAddress("0.0.0.0")
	assert.Equal(t, 9000, s.Port(), "port of a running plugin does not change")
	assert.Equal(t, "::1", s.Address(), "address of a running plugin does not change")

	require.True(t, s.Stop())
	s.SetPort(1234)
	assert.Equal(t, 1234, s.Port())
}

func TestSupervisorStart(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"), WithPort(9000), WithDir("/tmp"))

		if !assert.True(t, s.Start(), "Start should succeed") {
			return
		}
		assert.True(t, s.IsRunning())
		assert.Equal(t, 1000, s.Pid())
		assert.Empty(t, f.notifier.list)

		if !assert.Len(t, f.spawner.specs, 1) {
			return
		}
		spec := f.spawner.specs[0]
		assert.Equal(t, []string{"exe", "--address", "127.0.0.1", "--port", "9000"}, spec.Argv)
		assert.Equal(t, "/tmp", spec.Dir)
		assert.Contains(t, spec.Env, "ENGINE_PLUGIN_ID=slicer")
		assert.Contains(t, spec.Env, "ENGINE_PLUGIN_ADDRESS=127.0.0.1")
		assert.Contains(t, spec.Env, "ENGINE_PLUGIN_PORT=9000")

		logs := f.logs.String()
		assert.Contains(t, logs, "level=INFO")
		assert.Contains(t, logs, "plugin=slicer")
		assert.Contains(t, logs, `command="exe --address 127.0.0.1 --port 9000"`)
	})

	t.Run("twice", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"), WithPort(9000))

		require.True(t, s.Start())
		first := f.spawner.last()
		assert.True(t, s.Start(), "second Start is a no-op")

		assert.True(t, s.IsRunning())
		assert.Len(t, f.spawner.specs, 1, "no second process is spawned")
		assert.Equal(t, first.Pid(), s.Pid(), "first handle is kept")
		terminate, kill, wait := first.counts()
		assert.Equal(t, [3]int{0, 0, 0}, [3]int{terminate, kill, wait}, "first handle is untouched")
		assert.Empty(t, f.notifier.list)
	})

	t.Run("port in template without assigned port", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe", "--port", "1"))

		require.True(t, s.Start())
		if !assert.Len(t, f.spawner.specs, 1) {
			return
		}
		env := f.spawner.specs[0].Env
		assert.Contains(t, env, "ENGINE_PLUGIN_ID=slicer")
		for _, kv := range env {
			assert.False(t, strings.HasPrefix(kv, "ENGINE_PLUGIN_PORT="), "unexpected %s", kv)
		}
	})

	t.Run("empty command", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithPort(9000))

		assert.False(t, s.Start())
		assert.False(t, s.IsRunning())
		assert.Empty(t, f.spawner.specs, "nothing is spawned")
		if assert.Len(t, f.notifier.list, 1) {
			assert.Equal(t, ExecutableNotFound, f.notifier.list[0].Kind)
		}
	})
}

func TestSupervisorStartFailures(t *testing.T) {
	testcases := []struct {
		name  string
		err   error
		kind  FailureKind
		text  string
		trace bool
	}{
		{
			name:  "permission denied",
			err:   &fs.PathError{Op: "fork/exec", Path: "/opt/exe", Err: syscall.EACCES},
			kind:  PermissionDenied,
			text:  "Couldn't start EnginePlugin: slicer\nNo permission to execute process.",
			trace: false,
		},
		{
			name:  "missing executable",
			err:   &fs.PathError{Op: "fork/exec", Path: "/opt/exe", Err: syscall.ENOENT},
			kind:  ExecutableNotFound,
			text:  "Unable to find local EnginePlugin server executable for: slicer",
			trace: true,
		},
		{
			name:  "not in PATH",
			err:   &exec.Error{Name: "exe", Err: exec.ErrNotFound},
			kind:  ExecutableNotFound,
			text:  "Unable to find local EnginePlugin server executable for: slicer",
			trace: true,
		},
		{
			name:  "anything else",
			err:   errors.New("quarantined by the virus scanner"),
			kind:  BlockedByEnvironment,
			text:  "Couldn't start EnginePlugin: slicer\nOperating system is blocking it (antivirus?)",
			trace: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			f.spawner.err = tc.err
			s := f.supervisor("slicer", WithCommand("/opt/exe"), WithPort(9000))

			assert.False(t, s.Start(), "Start should fail")
			assert.False(t, s.IsRunning())
			assert.Equal(t, 0, s.Pid())
			assert.Len(t, f.spawner.specs, 1, "spawn is attempted once")

			if !assert.Len(t, f.notifier.list, 1, "exactly one notification") {
				return
			}
			n := f.notifier.list[0]
			assert.Equal(t, tc.kind, n.Kind)
			assert.Equal(t, SeverityError, n.Severity)
			assert.Equal(t, "EnginePlugin", n.Title)
			assert.Equal(t, tc.text, n.Text)

			if assert.NotNil(t, s.LastFailure()) {
				assert.Equal(t, tc.kind, s.LastFailure().Kind)
				assert.Equal(t, OpStart, s.LastFailure().Op)
			}

			logs := f.logs.String()
			assert.Contains(t, logs, "level=ERROR")
			assert.Contains(t, logs, "kind="+tc.kind.String())
			assert.Equal(t, tc.trace, strings.Contains(logs, "trace="), "trace logged only for unexpected failures")
		})
	}
}

func TestSupervisorStop(t *testing.T) {
	t.Run("never started", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))

		assert.True(t, s.Stop())
		assert.False(t, s.IsRunning())
		assert.Empty(t, f.notifier.list)
	})

	t.Run("running", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		p := f.spawner.last()

		if !assert.True(t, s.Stop(), "Stop should succeed") {
			return
		}
		assert.False(t, s.IsRunning())
		assert.Equal(t, 0, s.Pid())

		terminate, kill, wait := p.counts()
		assert.Equal(t, 1, terminate)
		assert.Equal(t, 0, kill, "no forced kill")
		assert.Equal(t, 1, wait, "process is reaped")

		logs := f.logs.String()
		assert.Contains(t, logs, "level=DEBUG")
		assert.Contains(t, logs, "exit_code=0")

		assert.True(t, s.Stop(), "second Stop is a no-op")
		assert.False(t, s.IsRunning())
		terminate, _, _ = p.counts()
		assert.Equal(t, 1, terminate)
		assert.Empty(t, f.notifier.list, "no notifications")
	})

	t.Run("non-zero exit", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		f.spawner.last().exitCode = -15

		assert.True(t, s.Stop())
		assert.Contains(t, f.logs.String(), "exit_code=-15")
	})

	t.Run("already exited", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		f.spawner.last().terminateErr = os.ErrProcessDone

		assert.True(t, s.Stop())
		assert.False(t, s.IsRunning())
		assert.Empty(t, f.notifier.list)
	})

	t.Run("permission denied", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		p := f.spawner.last()
		p.terminateErr = syscall.EPERM

		assert.False(t, s.Stop(), "Stop should fail")
		assert.True(t, s.IsRunning(), "state is left alone")
		assert.Equal(t, p.Pid(), s.Pid())
		_, _, wait := p.counts()
		assert.Equal(t, 0, wait, "process is not waited for")

		if assert.Len(t, f.notifier.list, 1, "exactly one notification") {
			n := f.notifier.list[0]
			assert.Equal(t, PermissionDenied, n.Kind)
			assert.Equal(t, "Unable to kill running EnginePlugin: slicer\nAccess is denied.", n.Text)
		}
		if assert.NotNil(t, s.LastFailure()) {
			assert.Equal(t, OpStop, s.LastFailure().Op)
		}

		// once the OS lets us, stopping works
		p.terminateErr = nil
		assert.True(t, s.Stop())
		assert.False(t, s.IsRunning())
		assert.Nil(t, s.LastFailure())
		assert.Len(t, f.notifier.list, 1)
	})

	t.Run("other terminate error", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		f.spawner.last().terminateErr = errors.New("no such thing")

		assert.False(t, s.Stop())
		assert.True(t, s.IsRunning())
		if assert.Len(t, f.notifier.list, 1) {
			assert.Equal(t, BlockedByEnvironment, f.notifier.list[0].Kind)
		}
	})

	t.Run("restart after stop", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"))
		require.True(t, s.Start())
		require.True(t, s.Stop())
		require.True(t, s.Start())

		assert.True(t, s.IsRunning())
		assert.Len(t, f.spawner.specs, 2)
		assert.Equal(t, 1001, s.Pid())
	})
}

func TestSupervisorStopTimeout(t *testing.T) {
	t.Run("process exits in time", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"), WithStopTimeout(time.Minute))
		require.True(t, s.Start())

		assert.True(t, s.Stop())
		_, kill, _ := f.spawner.last().counts()
		assert.Equal(t, 0, kill)
	})

	t.Run("process is killed", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"), WithStopTimeout(10*time.Millisecond))
		require.True(t, s.Start())
		p := f.spawner.last()
		p.hang = make(chan struct{})

		if !assert.True(t, s.Stop()) {
			return
		}
		assert.False(t, s.IsRunning())
		_, kill, _ := p.counts()
		assert.Equal(t, 1, kill)
		assert.Contains(t, f.logs.String(), "exit_code=-9")
		assert.Empty(t, f.notifier.list)
	})

	t.Run("kill is refused", func(t *testing.T) {
		f := newFixture()
		s := f.supervisor("slicer", WithCommand("exe"), WithStopTimeout(10*time.Millisecond))
		require.True(t, s.Start())
		p := f.spawner.last()
		hang := make(chan struct{})
		defer close(hang)
		p.hang = hang
		p.killErr = syscall.EPERM

		assert.False(t, s.Stop())
		assert.True(t, s.IsRunning())
		if assert.Len(t, f.notifier.list, 1) {
			assert.Equal(t, PermissionDenied, f.notifier.list[0].Kind)
		}
	})
}

type recordingMetrics struct {
	events []string
}

func (m *recordingMetrics) PluginStarted(id string) {
	m.events = append(m.events, "started:"+id)
}

func (m *recordingMetrics) PluginStartFailed(id string, kind FailureKind) {
	m.events = append(m.events, "start_failed:"+id+":"+kind.String())
}

func (m *recordingMetrics) PluginStopped(id string, _ int, _ time.Duration) {
	m.events = append(m.events, "stopped:"+id)
}

func (m *recordingMetrics) PluginStopFailed(id string, kind FailureKind) {
	m.events = append(m.events, "stop_failed:"+id+":"+kind.String())
}

func (m *recordingMetrics) PluginKilled(id string) {
	m.events = append(m.events, "killed:"+id)
}

func TestSupervisorMetrics(t *testing.T) {
	f := newFixture()
	m := &recordingMetrics{}
	s := f.supervisor("slicer", WithCommand("exe"), WithMetrics(m))

	require.True(t, s.Start())
	f.spawner.last().terminateErr = syscall.EPERM
	require.False(t, s.Stop())
	f.spawner.last().terminateErr = nil
	require.True(t, s.Stop())

	f.spawner.err = syscall.ENOENT
	require.False(t, s.Start())

	assert.Equal(t, []string{
		"started:slicer",
		"stop_failed:slicer:PermissionDenied",
		"stopped:slicer",
		"start_failed:slicer:ExecutableNotFound",
	}, m.events)
}

type staticSettings map[string]interface{}

func (s staticSettings) SettingDefinitions() map[string]interface{} {
	return s
}

func TestSupervisorSettings(t *testing.T) {
	settings := staticSettings{"engine_plugin_quality": "fine"}
	s := New("slicer", WithSettings(settings))
	assert.Equal(t, settings, s.Settings())
}
