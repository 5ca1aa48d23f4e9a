package chat

import (
	"regexp"
	"strings"
	"time"
)

// Status is the administrator-managed lifecycle of a conversation.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusClosed     Status = "closed"
)

// MaxMessageLength caps message bodies, counted in characters.
const MaxMessageLength = 1200

// MaxConversationIDLength caps normalized conversation ids.
const MaxConversationIDLength = 80

var conversationIDStrip = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// ParseStatus validates a status string against the fixed enum.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusOpen, StatusInProgress, StatusDone, StatusClosed:
		return s, true
	default:
		return "", false
	}
}

// IsClosed reports whether the status blocks further visitor messages.
func (s Status) IsClosed() bool {
	return s == StatusDone || s == StatusClosed
}

// NormalizeConversationID strips everything outside [A-Za-z0-9_-] and caps
// the length. An empty result means no usable id was supplied.
func NormalizeConversationID(raw string) string {
	id := conversationIDStrip.ReplaceAllString(strings.TrimSpace(raw), "")
	if len(id) > MaxConversationIDLength {
		id = id[:MaxConversationIDLength]
	}
	return id
}

// State is the status/deleted/closed_at triple every message row carries.
type State struct {
	Status   Status     `json:"status"`
	Deleted  bool       `json:"deleted"`
	ClosedAt *time.Time `json:"closed_at,omitempty"`
}

// NewState derives closed_at from status and deleted: set to now exactly when
// the conversation is closed and not deleted.
func NewState(status Status, deleted bool, now time.Time) State {
	state := State{Status: status, Deleted: deleted}
	if status.IsClosed() && !deleted {
		at := now
		state.ClosedAt = &at
	}
	return state
}

// Message is one row of the append-only conversation log.
type Message struct {
	ID               int64      `json:"id"`
	ConversationID   string     `json:"conversation_id"`
	UserID           *int64     `json:"user_id,omitempty"`
	AdminID          *int64     `json:"admin_id,omitempty"`
	AdminDisplayName string     `json:"admin_display_name,omitempty"`
	VisitorFirstName string     `json:"visitor_first_name"`
	VisitorLastName  string     `json:"visitor_last_name"`
	VisitorEmail     string     `json:"visitor_email"`
	Body             string     `json:"body"`
	State
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// FromSupport reports whether an administrator wrote the message.
func (m Message) FromSupport() bool {
	return m.AdminID != nil
}

// Conversation is the read-time projection of a conversation's messages.
type Conversation struct {
	ConversationID   string     `json:"conversation_id"`
	Status           Status     `json:"status"`
	Deleted          bool       `json:"deleted"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
	UserID           *int64     `json:"user_id,omitempty"`
	VisitorFirstName string     `json:"visitor_first_name"`
	VisitorLastName  string     `json:"visitor_last_name"`
	VisitorEmail     string     `json:"visitor_email"`
	LastMessage      string     `json:"last_message"`
	LastMessageAt    time.Time  `json:"last_message_at"`
	LastFromSupport  bool       `json:"last_from_support"`
	MessageCount     int        `json:"message_count"`
}
