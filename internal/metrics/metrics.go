// Package metrics счётчики Prometheus движка бронирования
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "master_scheduler"

var (
	SlotsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slots_generated_total",
		Help:      "Slots created by the slot generator.",
	})

	// BookingAttempts результат попытки бронирования: ok, conflict, not_found, invalid_range, order_not_found, error
	BookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_attempts_total",
		Help:      "BookSlot calls by result.",
	}, []string{"result"})

	SlotTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_transitions_total",
		Help:      "Slot status transitions outside of booking.",
	}, []string{"transition"})

	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reminders_sent_total",
		Help:      "Upcoming order reminders emitted.",
	}, []string{"threshold", "role"})

	TaskRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "background_task_runs_total",
		Help:      "Background task executions by outcome: ok, error, skipped.",
	}, []string{"task", "outcome"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "background_task_duration_seconds",
		Help:      "Background task execution time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})
)

// Handler отдаёт метрики для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
