package starter

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lestrrat-go/engine-starter/internal/env"
)

const version = `0.1.0`

// DefaultAddress is the address handed to plugins that were not
// given one explicitly
const DefaultAddress = "127.0.0.1"

type Option interface {
	Name() string
	Value() interface{}
}

// Supervisor owns the lifecycle of a single engine plugin process.
// Start and Stop are expected to be called serially by the owner;
// there is no internal locking.
type Supervisor struct {
	id          string
	address     string
	port        int
	command     []string
	slots       []int
	dir         string
	envLoader   *env.Loader
	stopSignal  os.Signal
	stopTimeout time.Duration
	settings    SettingsProvider

	spawner  Spawner
	notifier Notifier
	logger   *slog.Logger
	metrics  MetricsCollector

	process     Process
	running     bool
	lastFailure *Failure
}

// Spawner is the OS process creation primitive.
type Spawner interface {
	Spawn(spec SpawnSpec) (Process, error)
}

// SpawnSpec describes the process to create.
type SpawnSpec struct {
	Argv []string
	Dir  string
	Env  []string
}

// Process is a handle to a spawned child process.
type Process interface {
	Pid() int
	// Terminate requests a graceful shutdown
	Terminate() error
	// Kill forcibly stops the process
	Kill() error
	// Wait blocks until the process exits and returns its exit code.
	// A process killed by signal N reports -N.
	Wait() (int, error)
}

// SettingsProvider supplies extra setting definitions that the host
// merges into its own settings tree. The supervisor only carries it.
type SettingsProvider interface {
	SettingDefinitions() map[string]interface{}
}

type CLI struct {
	errOutput io.Writer
}

type durationOpt struct {
	Valid bool
	Value time.Duration
}
