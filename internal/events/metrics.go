package events

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the optional Prometheus instrumentation a Recorder can
// report into. Observability is ambient: it's wired the same way regardless
// of which features a given run exercises.
type Metrics struct {
	commandsTotal   *prometheus.CounterVec
	mcpCallDuration *prometheus.HistogramVec
	toolLoopStreak  prometheus.Gauge
	cacheHitRatio   prometheus.Gauge
}

// NewMetrics registers the recorder's counters/histograms/gauges against reg
// and returns a Metrics ready to attach to a Recorder via WithMetrics. Pass a
// fresh prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across package-level recorders.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coreloop",
			Subsystem: "events",
			Name:      "commands_total",
			Help:      "Completed PTY/shell command executions by status.",
		}, []string{"status"}),
		mcpCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "coreloop",
			Subsystem: "events",
			Name:      "mcp_call_duration_seconds",
			Help:      "MCP tool call latency by provider and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "status"}),
		toolLoopStreak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coreloop",
			Subsystem: "events",
			Name:      "tool_loop_streak",
			Help:      "Consecutive same-tool-call streak in the current session.",
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "coreloop",
			Subsystem: "events",
			Name:      "cache_hit_ratio",
			Help:      "Rolling tool-result cache hit ratio.",
		}),
	}
	reg.MustRegister(m.commandsTotal, m.mcpCallDuration, m.toolLoopStreak, m.cacheHitRatio)
	return m
}

// ObserveCommand increments the commands_total counter for status.
func (m *Metrics) ObserveCommand(status CommandStatus) {
	m.commandsTotal.WithLabelValues(commandStatusLabel(status)).Inc()
}

// ObserveMCPCall records an MCP call's duration under provider/status.
func (m *Metrics) ObserveMCPCall(provider string, status MCPStatus, d time.Duration) {
	m.mcpCallDuration.WithLabelValues(provider, mcpStatusLabel(status)).Observe(d.Seconds())
}

// SetToolLoopStreak reports the current consecutive-identical-tool-call
// streak length, e.g. for session.FailureTracker to surface.
func (m *Metrics) SetToolLoopStreak(n int) {
	m.toolLoopStreak.Set(float64(n))
}

// SetCacheHitRatio reports the tool-result cache's rolling hit ratio.
func (m *Metrics) SetCacheHitRatio(ratio float64) {
	m.cacheHitRatio.Set(ratio)
}

func commandStatusLabel(s CommandStatus) string {
	switch s {
	case CommandCompleted:
		return "completed"
	case CommandFailed:
		return "failed"
	default:
		return "in_progress"
	}
}

func mcpStatusLabel(s MCPStatus) string {
	switch s {
	case MCPSuccess:
		return "success"
	case MCPFailure:
		return "failure"
	case MCPCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}
