// Package metrics provides Prometheus metrics for the reconciliation core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// completionsDetected counts task keys reported as newly completed.
	completionsDetected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mellow_completions_detected_total",
			Help: "Total number of task transitions into COMPLETED reported to consumers",
		},
	)

	// feedDeliveries counts live feed deliveries.
	// Labels:
	//   - result: "ok", "error", "dropped" (delivered after dispose)
	feedDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellow_feed_deliveries_total",
			Help: "Total number of live feed deliveries processed by reconcile controllers",
		},
		[]string{"result"},
	)

	remindersScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mellow_reminders_scheduled_total",
			Help: "Total number of meeting reminder timers created",
		},
	)

	// remindersCancelled counts reminder timers cancelled before firing.
	// Labels:
	//   - reason: "gone", "rescheduled", "cancel_all"
	remindersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellow_reminders_cancelled_total",
			Help: "Total number of meeting reminder timers cancelled before firing",
		},
		[]string{"reason"},
	)

	// remindersFired counts reminder timers that fired.
	// Labels:
	//   - result: "displayed", "display_failed"
	remindersFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mellow_reminders_fired_total",
			Help: "Total number of meeting reminders fired",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(completionsDetected)
	prometheus.MustRegister(feedDeliveries)
	prometheus.MustRegister(remindersScheduled)
	prometheus.MustRegister(remindersCancelled)
	prometheus.MustRegister(remindersFired)
}

func RecordCompletions(n int) {
	if n > 0 {
		completionsDetected.Add(float64(n))
	}
}

func RecordFeedDelivery(result string) {
	feedDeliveries.WithLabelValues(result).Inc()
}

func RecordReminderScheduled() {
	remindersScheduled.Inc()
}

func RecordReminderCancelled(reason string) {
	remindersCancelled.WithLabelValues(reason).Inc()
}

func RecordReminderFired(result string) {
	remindersFired.WithLabelValues(result).Inc()
}

// Handler serves the default registry for the headless watch command.
func Handler() http.Handler {
	return promhttp.Handler()
}
