// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for the agent.
// Exposes counters in a thread-safe map; unknown names start at zero.

package control

import "sync"

// Metric names maintained by the agent.
const (
	MetricHandshakes       = "handshakes"
	MetricHandshakeErrors  = "handshake_errors"
	MetricSessionsReplaced = "sessions_replaced"
	MetricPingsSent        = "pings_sent"
	MetricPongsReceived    = "pongs_received"
	MetricReloadsSent      = "reloads_sent"
	MetricReloadsDropped   = "reloads_dropped"
	MetricWriteFailures    = "write_failures"
	MetricAnomalies        = "anomalies"
	MetricMalformedFrames  = "malformed_frames"
	MetricCloses           = "closes"
)

// MetricsRegistry holds the agent's counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]any
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]any),
	}
}

// Inc increments an integer counter, creating it at zero. A nil registry
// is a no-op so components may run without metrics.
func (mr *MetricsRegistry) Inc(key string) {
	if mr == nil {
		return
	}
	mr.mu.Lock()
	n, _ := mr.metrics[key].(int64)
	mr.metrics[key] = n + 1
	mr.mu.Unlock()
}

// Counter returns the current value of an integer counter.
func (mr *MetricsRegistry) Counter(key string) int64 {
	if mr == nil {
		return 0
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	n, _ := mr.metrics[key].(int64)
	return n
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	if mr == nil {
		return map[string]any{}
	}
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}
