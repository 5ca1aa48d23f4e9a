package chat

import (
	"context"
	"errors"
	"time"
)

// ErrMessageNotFound is returned when a message id is unknown.
var ErrMessageNotFound = errors.New("chat message not found")

// Repository exposes the message log. Implementations must keep rows
// immutable except through Transition and UpdateBody.
//
// AppendTo and Transition are units of work: the conversation's rows handed
// to the callback are exactly the rows the write applies to, and no other
// AppendTo or Transition on the same conversation lands in between. An error
// from the callback aborts the write and is returned unchanged.
type Repository interface {
	// AppendTo loads the conversation, asks build for the next message and
	// stores it, assigning its ID.
	AppendTo(ctx context.Context, conversationID string, build func(existing []Message) (*Message, error)) error
	// ListConversation returns the conversation's messages in (created_at, id) order.
	ListConversation(ctx context.Context, conversationID string) ([]Message, error)
	// ListParticipant returns messages whose user id or visitor email matches.
	// A nil userID or empty email disables that half of the match.
	ListParticipant(ctx context.Context, userID *int64, email string) ([]Message, error)
	// ListAll returns the whole log.
	ListAll(ctx context.Context) ([]Message, error)
	// Transition restamps every row of the conversation with the state next
	// derives from those rows.
	Transition(ctx context.Context, conversationID string, next func(existing []Message) (State, error)) error
	// FindMessage loads a single message.
	FindMessage(ctx context.Context, id int64) (Message, error)
	// UpdateBody overwrites a message body and sets updated_at.
	UpdateBody(ctx context.Context, id int64, body string, updatedAt time.Time) (Message, error)
}
