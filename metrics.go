package starter

import "time"

// MetricsCollector receives lifecycle events of supervised plugins
type MetricsCollector interface {
	// PluginStarted records a successful spawn
	PluginStarted(id string)

	// PluginStartFailed records a spawn the OS refused
	PluginStartFailed(id string, kind FailureKind)

	// PluginStopped records a reaped plugin, its exit code and the time
	// it took from the terminate request until it was reaped
	PluginStopped(id string, exitCode int, d time.Duration)

	// PluginStopFailed records a terminate (or kill) request the OS refused
	PluginStopFailed(id string, kind FailureKind)

	// PluginKilled records a plugin that outlived its stop timeout
	PluginKilled(id string)
}

type noopMetricsCollector struct{}

func (noopMetricsCollector) PluginStarted(string)                     {}
func (noopMetricsCollector) PluginStartFailed(string, FailureKind)    {}
func (noopMetricsCollector) PluginStopped(string, int, time.Duration) {}
func (noopMetricsCollector) PluginStopFailed(string, FailureKind)     {}
func (noopMetricsCollector) PluginKilled(string)                      {}

func NewNoopMetricsCollector() MetricsCollector {
	return noopMetricsCollector{}
}
