package starter

import (
	"log/slog"
	"os"
	"time"
)

const (
	optkeyAddress     = "address"
	optkeyCommand     = "command"
	optkeyDir         = "dir"
	optkeyEnvdir      = "envdir"
	optkeyLogger      = "logger"
	optkeyMetrics     = "metrics"
	optkeyNotifier    = "notifier"
	optkeyPort        = "port"
	optkeySettings    = "settings"
	optkeySlots       = "supported_slots"
	optkeySpawner     = "spawner"
	optkeyStopSignal  = "stop_signal"
	optkeyStopTimeout = "stop_timeout"
)

type valueOption struct {
	name  string
	value interface{}
}

func (o *valueOption) Name() string {
	return o.name
}

func (o *valueOption) Value() interface{} {
	return o.value
}

// WithAddress sets the address the plugin should bind to
func WithAddress(s string) Option {
	return &valueOption{name: optkeyAddress, value: s}
}

// WithCommand sets the command template: the executable followed by
// its arguments
func WithCommand(l ...string) Option {
	return &valueOption{name: optkeyCommand, value: l}
}

func WithDir(dir string) Option {
	return &valueOption{name: optkeyDir, value: dir}
}

// WithEnvdir specifies a directory whose files are loaded as extra
// environment variables for the plugin process
func WithEnvdir(dir string) Option {
	return &valueOption{name: optkeyEnvdir, value: dir}
}

func WithLogger(l *slog.Logger) Option {
	return &valueOption{name: optkeyLogger, value: l}
}

func WithMetrics(m MetricsCollector) Option {
	return &valueOption{name: optkeyMetrics, value: m}
}

func WithNotifier(n Notifier) Option {
	return &valueOption{name: optkeyNotifier, value: n}
}

func WithPort(p int) Option {
	return &valueOption{name: optkeyPort, value: p}
}

func WithSettings(p SettingsProvider) Option {
	return &valueOption{name: optkeySettings, value: p}
}

func WithSupportedSlots(l ...int) Option {
	return &valueOption{name: optkeySlots, value: l}
}

// WithSpawner replaces the OS process primitive. Mostly useful for tests
func WithSpawner(s Spawner) Option {
	return &valueOption{name: optkeySpawner, value: s}
}

// WithStopSignal sets the signal sent to request a graceful shutdown.
// Ignored on windows, where there is no such thing
func WithStopSignal(s os.Signal) Option {
	return &valueOption{name: optkeyStopSignal, value: s}
}

// WithStopTimeout bounds the time Stop waits for the process to exit
// after the terminate request. Once it elapses the process is killed.
// Zero, the default, waits forever
func WithStopTimeout(t time.Duration) Option {
	return &valueOption{name: optkeyStopTimeout, value: t}
}

func (o *durationOpt) MarshalFlag() (string, error) {
	return o.Value.String(), nil
}

func (o *durationOpt) UnmarshalFlag(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	o.Valid = true
	o.Value = d
	return nil
}

type options struct {
	Args          []string
	Address       string      `long:"address" arg:"addr" description:"address the plugin binds to (default: 127.0.0.1)"`
	Config        string      `long:"config" arg:"filename" description:"YAML manifest describing the plugins to run. When given, the\ncommand after \"--\" is ignored"`
	Dir           string      `long:"dir" arg:"path" description:"working directory of the plugin process (optional)"`
	Envdir        string      `long:"envdir" arg:"Envdir" description:"directory that contains environment variables to the plugin process.\nIt is intended for use with \"envdir\" in \"daemontools\"."`
	ID            string      `long:"id" arg:"name" description:"identifier of the plugin, used in log lines and messages\n(default: base name of the executable)"`
	LogFormat     string      `long:"log-format" arg:"(text|json)" description:"log output format (default: text)"`
	LogLevel      string      `long:"log-level" arg:"level" description:"one of debug, info, warn, error (default: info)"`
	MetricsListen string      `long:"metrics-listen" arg:"host:port" description:"if set, serves prometheus metrics at /metrics on this address"`
	Port          int         `long:"port" arg:"port" description:"port the plugin listens to. 0 picks a free port (default: 0)"`
	Slots         []int       `long:"slot" arg:"slot" description:"slot id supported by the plugin (repeatable, descriptive only)"`
	StopSignal    string      `long:"stop-signal" arg:"Signal" description:"name of the signal sent to the plugin to request a shutdown\n(default: TERM)"`
	StopTimeout   durationOpt `long:"stop-timeout" arg:"duration" description:"time to wait for the plugin to exit before killing it.\nWaits forever if omitted"`
	Help          bool        `long:"help" description:"prints this help"`
	Version       bool        `long:"version" description:"prints the version number"`
}
