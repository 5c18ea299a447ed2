package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all engine metrics
type Metrics struct {
	// Claim/dispatch metrics
	NotificationsClaimed   prometheus.Counter
	NotificationsSent      prometheus.Counter
	NotificationsFailed    prometheus.Counter
	NotificationsRequeued  prometheus.Counter
	NotificationsDeferred  prometheus.Counter
	DispatchDuration       prometheus.Histogram
	PendingQueueSize       prometheus.Gauge

	// Per-channel metrics
	ChannelAttempts *prometheus.CounterVec
	ChannelFailures *prometheus.CounterVec

	// Auto-creation and retention
	RemindersCreated *prometheus.CounterVec
	RetentionDeleted *prometheus.CounterVec
}

// NewMetrics creates and registers all engine metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		NotificationsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_claimed_total",
			Help:      "Total number of notifications claimed for dispatch",
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notifications with at least one successful channel",
		}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Total number of notifications that exhausted all channels and retries",
		}),
		NotificationsRequeued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_requeued_total",
			Help:      "Total number of notifications returned to pending with backoff",
		}),
		NotificationsDeferred: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_deferred_total",
			Help:      "Total number of notifications deferred by quiet hours",
		}),
		DispatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a single notification",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		PendingQueueSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_queue_size",
			Help:      "Current number of pending notifications",
		}),
		ChannelAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_attempts_total",
			Help:      "Delivery attempts per channel and outcome",
		}, []string{"channel", "outcome"}),
		ChannelFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channel_failures_total",
			Help:      "Permanent channel failures per channel",
		}, []string{"channel"}),
		RemindersCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_created_total",
			Help:      "Auto-created reminders per domain source",
		}, []string{"source"}),
		RetentionDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retention_deleted_total",
			Help:      "Rows removed by retention cleanup per table",
		}, []string{"table"}),
	}
}
