package notification

import (
	"context"
	"strings"
	"time"
)

// Event names the state change a notification reports.
type Event string

const (
	EventAppointmentBooked Event = "appointment.booked"
	EventChatStarted       Event = "chat.started"
)

// Notification is a single best-effort message to the portal operators.
type Notification struct {
	Event      Event             `json:"event"`
	Subject    string            `json:"subject"`
	Lines      []string          `json:"lines"`
	Fields     map[string]string `json:"fields,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Text joins the body lines.
func (n Notification) Text() string {
	return strings.Join(n.Lines, "\n")
}

// Dispatcher hands notifications off without blocking the caller. Delivery
// failures never reach the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification)
}

// Noop discards every notification.
type Noop struct{}

// Dispatch implements Dispatcher.
func (Noop) Dispatch(context.Context, Notification) {}
