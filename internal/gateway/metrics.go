package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's prometheus collectors on a private registry
// so tests can run gateways side by side without collector collisions.
type Metrics struct {
	registry *prometheus.Registry

	ChatTurns    prometheus.Counter
	StreamErrors prometheus.Counter
	MemoryOps    *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ChatTurns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starpal_chat_turns_total",
			Help: "Completed chat turns, including turns that failed mid-stream.",
		}),
		StreamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starpal_chat_stream_errors_total",
			Help: "Chat turns that ended with a stream or validation error.",
		}),
		MemoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starpal_memory_operations_total",
			Help: "Long-term memory administration operations by kind.",
		}, []string{"op"}),
	}

	reg.MustRegister(m.ChatTurns, m.StreamErrors, m.MemoryOps)
	return m
}
