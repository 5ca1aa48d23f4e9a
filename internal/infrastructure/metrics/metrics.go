package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Portal metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Appointment bookings by outcome (booked, conflict, rescheduled, cancelled)
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Chat messages by sender
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages written, by sender",
		},
		[]string{"sender"},
	)

	// Notifications by transport and outcome
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification attempts by transport and outcome",
		},
		[]string{"transport", "event", "outcome"},
	)

	// Storage initialization failures
	StorageInitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "storage",
			Name:      "init_failures_total",
			Help:      "Failed attempts to open the storage backend",
		},
		[]string{"backend"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordAppointment records an appointment operation outcome
func RecordAppointment(operation, outcome string) {
	BookingsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordChatMessage records a written chat message
func RecordChatMessage(fromSupport bool) {
	sender := "visitor"
	if fromSupport {
		sender = "support"
	}
	ChatMessagesTotal.WithLabelValues(sender).Inc()
}

// RecordNotification records a notification attempt
func RecordNotification(transport, event, outcome string) {
	NotificationsTotal.WithLabelValues(transport, event, outcome).Inc()
}

// RecordStorageInitFailure records a failed backend open
func RecordStorageInitFailure(backend string) {
	StorageInitFailures.WithLabelValues(backend).Inc()
}
