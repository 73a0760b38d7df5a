package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the service.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	QueueDropped   prometheus.Counter
	QueueDepth     prometheus.Gauge
	TasksProcessed prometheus.Counter
	TasksAbandoned prometheus.Counter

	LiveConnections prometheus.Gauge
	LiveSent        prometheus.Counter
	LiveFailed      prometheus.Counter

	PushSent     prometheus.Counter
	PushFailed   prometheus.Counter
	TokensPruned prometheus.Counter
}

// New registers all instruments with the given registerer and returns the
// populated Metrics struct. Using an injected registry (instead of the
// default one) keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_queue_dropped_total",
			Help: "Total number of delivery tasks dropped because the queue was full.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "delivery_queue_depth",
			Help: "Current number of tasks waiting in the delivery queue.",
		}),
		TasksProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_tasks_processed_total",
			Help: "Total number of delivery tasks processed by the consumer.",
		}),
		TasksAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delivery_tasks_abandoned_total",
			Help: "Total number of drained tasks abandoned at shutdown.",
		}),

		LiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "live_connections",
			Help: "Current number of open live connections.",
		}),
		LiveSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_events_sent_total",
			Help: "Total number of events delivered to live connections.",
		}),
		LiveFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "live_events_failed_total",
			Help: "Total number of live sends that failed and removed a connection.",
		}),

		PushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_messages_sent_total",
			Help: "Total number of push messages accepted by the provider.",
		}),
		PushFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_messages_failed_total",
			Help: "Total number of push messages rejected by the provider.",
		}),
		TokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "push_tokens_pruned_total",
			Help: "Total number of permanently invalid device tokens deleted.",
		}),
	}

	reg.MustRegister(
		m.QueueDropped,
		m.QueueDepth,
		m.TasksProcessed,
		m.TasksAbandoned,
		m.LiveConnections,
		m.LiveSent,
		m.LiveFailed,
		m.PushSent,
		m.PushFailed,
		m.TokensPruned,
	)

	return m
}
