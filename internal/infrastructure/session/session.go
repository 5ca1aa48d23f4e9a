package session

import (
	"context"
	"errors"
	"time"

	"portal-api/internal/domain/identity"
)

// ErrNotFound is returned for unknown or expired session ids.
var ErrNotFound = errors.New("session not found")

// Record is the server-side state behind the session cookie.
type Record struct {
	UserID             *int64            `json:"user_id,omitempty"`
	ChatConversationID string            `json:"chat_conversation_id,omitempty"`
	ChatIdentity       *identity.Visitor `json:"chat_identity,omitempty"`
	ExpiresAt          time.Time         `json:"expires_at"`
}

// Expired reports whether the record is past its lifetime at now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// Store persists session records. Save refreshes ExpiresAt.
type Store interface {
	Get(ctx context.Context, id string) (Record, error)
	Save(ctx context.Context, id string, rec Record) (Record, error)
	Delete(ctx context.Context, id string) error
}
