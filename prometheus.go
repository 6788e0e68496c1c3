package starter

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetricsCollector implements MetricsCollector using Prometheus metrics
type PrometheusMetricsCollector struct {
	starts       *prometheus.CounterVec
	stops        *prometheus.CounterVec
	kills        *prometheus.CounterVec
	running      *prometheus.GaugeVec
	lastExitCode *prometheus.GaugeVec
	stopDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewPrometheusMetricsCollector creates a collector registering its
// metrics in a private registry
func NewPrometheusMetricsCollector(namespace string) *PrometheusMetricsCollector {
	if namespace == "" {
		namespace = "engine_starter"
	}

	pmc := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
	}

	pmc.starts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_starts_total",
			Help:      "Total number of plugin start attempts",
		},
		[]string{"plugin", "result"},
	)

	pmc.stops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_stops_total",
			Help:      "Total number of plugin stop attempts",
		},
		[]string{"plugin", "result"},
	)

	pmc.kills = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plugin_forced_kills_total",
			Help:      "Total number of plugins killed after their stop timeout",
		},
		[]string{"plugin"},
	)

	pmc.running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugin_running",
			Help:      "Whether the plugin is believed to be running (1) or not (0)",
		},
		[]string{"plugin"},
	)

	pmc.lastExitCode = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugin_last_exit_code",
			Help:      "Exit code of the last reaped plugin process",
		},
		[]string{"plugin"},
	)

	pmc.stopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "plugin_stop_duration_seconds",
			Help:      "Time from the terminate request until the plugin was reaped",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	pmc.registry.MustRegister(
		pmc.starts,
		pmc.stops,
		pmc.kills,
		pmc.running,
		pmc.lastExitCode,
		pmc.stopDuration,
	)

	return pmc
}

func (pmc *PrometheusMetricsCollector) PluginStarted(id string) {
	pmc.starts.WithLabelValues(id, "ok").Inc()
	pmc.running.WithLabelValues(id).Set(1)
}

func (pmc *PrometheusMetricsCollector) PluginStartFailed(id string, kind FailureKind) {
	pmc.starts.WithLabelValues(id, kind.String()).Inc()
}

func (pmc *PrometheusMetricsCollector) PluginStopped(id string, exitCode int, d time.Duration) {
	pmc.stops.WithLabelValues(id, "ok").Inc()
	pmc.running.WithLabelValues(id).Set(0)
	pmc.lastExitCode.WithLabelValues(id).Set(float64(exitCode))
	pmc.stopDuration.WithLabelValues(id).Observe(d.Seconds())
}

func (pmc *PrometheusMetricsCollector) PluginStopFailed(id string, kind FailureKind) {
	pmc.stops.WithLabelValues(id, kind.String()).Inc()
}

func (pmc *PrometheusMetricsCollector) PluginKilled(id string) {
	pmc.kills.WithLabelValues(id).Inc()
}

// Registry returns the registry holding the collector's metrics
func (pmc *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return pmc.registry
}

// Handler serves the collected metrics in the Prometheus exposition format
func (pmc *PrometheusMetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(pmc.registry, promhttp.HandlerOpts{})
}
