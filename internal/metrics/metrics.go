package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	actionsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offlineq",
			Name:      "actions_enqueued_total",
			Help:      "Actions accepted into the queue, by type.",
		},
		[]string{"type"},
	)
	actionsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offlineq",
			Name:      "actions_delivered_total",
			Help:      "Actions delivered to the backend, by type.",
		},
		[]string{"type"},
	)
	actionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offlineq",
			Name:      "action_retries_total",
			Help:      "Failed delivery attempts that will be retried, by type.",
		},
		[]string{"type"},
	)
	actionsFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "offlineq",
			Name:      "actions_failed_total",
			Help:      "Actions that exhausted their retry budget, by type.",
		},
		[]string{"type"},
	)
	drainPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "offlineq",
			Name:      "drain_passes_total",
			Help:      "Completed drain passes.",
		},
	)
	queuePending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "offlineq",
			Name:      "queue_pending",
			Help:      "Actions waiting for delivery.",
		},
	)
	queueFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "offlineq",
			Name:      "queue_failed",
			Help:      "Actions in terminal failure awaiting manual retry.",
		},
	)
	connectivity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "offlineq",
			Name:      "backend_online",
			Help:      "1 when the backend is reachable, 0 otherwise.",
		},
	)
)

// Register registers all metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			actionsEnqueued,
			actionsDelivered,
			actionRetries,
			actionsFailed,
			drainPasses,
			queuePending,
			queueFailed,
			connectivity,
		)
	})
}

func IncEnqueued(actionType string)  { actionsEnqueued.WithLabelValues(actionType).Inc() }
func IncDelivered(actionType string) { actionsDelivered.WithLabelValues(actionType).Inc() }
func IncRetried(actionType string)   { actionRetries.WithLabelValues(actionType).Inc() }
func IncFailed(actionType string)    { actionsFailed.WithLabelValues(actionType).Inc() }
func IncDrainPass()                  { drainPasses.Inc() }

func SetQueueDepth(pending, failed int) {
	queuePending.Set(float64(pending))
	queueFailed.Set(float64(failed))
}

func SetOnline(online bool) {
	if online {
		connectivity.Set(1)
	} else {
		connectivity.Set(0)
	}
}
