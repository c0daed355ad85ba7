package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Email retry queue
	EmailsSent         prometheus.Counter
	EmailsFailed       prometheus.Counter
	EmailRetries       prometheus.Counter
	EmailsQueued       prometheus.Counter
	QueueDrainDuration prometheus.Histogram
	FailuresCleanedUp  prometheus.Counter

	// Appointments
	AppointmentTransitions *prometheus.CounterVec
	SlotConflicts          prometheus.Counter

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New builds the metric set and registers it with reg. A nil reg leaves the
// collectors unregistered, which keeps tests independent of the global registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Total number of queued emails delivered on retry",
		}),
		EmailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_failed_total",
			Help:      "Total number of queued emails that reached max retries",
		}),
		EmailRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_retry_attempts_total",
			Help:      "Total number of failed resend attempts",
		}),
		EmailsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_queued_total",
			Help:      "Total number of emails recorded in the retry queue",
		}),
		QueueDrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "email_queue_drain_duration_seconds",
			Help:      "Time spent draining the email retry queue",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		FailuresCleanedUp: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_failures_cleaned_total",
			Help:      "Total number of email failure records purged",
		}),
		AppointmentTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_transitions_total",
			Help:      "Appointment status transitions",
		}, []string{"status"}),
		SlotConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_slot_conflicts_total",
			Help:      "Bookings rejected because the slot was taken",
		}),
		DatabaseOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.EmailsSent,
			m.EmailsFailed,
			m.EmailRetries,
			m.EmailsQueued,
			m.QueueDrainDuration,
			m.FailuresCleanedUp,
			m.AppointmentTransitions,
			m.SlotConflicts,
			m.DatabaseOperations,
		)
	}
	return m
}
