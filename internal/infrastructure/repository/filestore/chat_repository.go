package filestore

import (
	"context"
	"strings"
	"time"

	domain "portal-api/internal/domain/chat"
)

// ChatRepository stores the message log in the JSON document.
type ChatRepository struct {
	store *Store
}

// NewChatRepository wraps a store.
func NewChatRepository(store *Store) *ChatRepository {
	return &ChatRepository{store: store}
}

func (r *ChatRepository) AppendTo(ctx context.Context, conversationID string, build func([]domain.Message) (*domain.Message, error)) error {
	return r.store.update(ctx, func(doc *document) error {
		m, err := build(doc.conversation(conversationID))
		if err != nil {
			return err
		}
		m.ID = doc.nextMessageID()
		doc.Messages = append(doc.Messages, messageToRecord(*m))
		return nil
	})
}

func (r *ChatRepository) ListConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return r.list(ctx, func(rec messageRecord) bool { return rec.ConversationID == conversationID })
}

func (r *ChatRepository) ListParticipant(ctx context.Context, userID *int64, email string) ([]domain.Message, error) {
	return r.list(ctx, func(rec messageRecord) bool {
		if userID != nil && rec.UserID != nil && *rec.UserID == *userID {
			return true
		}
		return email != "" && strings.EqualFold(rec.VisitorEmail, email)
	})
}

func (r *ChatRepository) ListAll(ctx context.Context) ([]domain.Message, error) {
	return r.list(ctx, func(messageRecord) bool { return true })
}

func (r *ChatRepository) Transition(ctx context.Context, conversationID string, next func([]domain.Message) (domain.State, error)) error {
	return r.store.update(ctx, func(doc *document) error {
		state, err := next(doc.conversation(conversationID))
		if err != nil {
			return err
		}
		for i := range doc.Messages {
			rec := &doc.Messages[i]
			if rec.ConversationID != conversationID {
				continue
			}
			rec.Status = string(state.Status)
			rec.Deleted = state.Deleted
			rec.ClosedAt = state.ClosedAt
		}
		return nil
	})
}

func (r *ChatRepository) FindMessage(ctx context.Context, id int64) (domain.Message, error) {
	var found domain.Message
	err := r.store.view(ctx, func(doc *document) error {
		for _, rec := range doc.Messages {
			if rec.ID == id {
				found = messageFromRecord(rec)
				return nil
			}
		}
		return domain.ErrMessageNotFound
	})
	return found, err
}

func (r *ChatRepository) UpdateBody(ctx context.Context, id int64, body string, updatedAt time.Time) (domain.Message, error) {
	var updated domain.Message
	err := r.store.update(ctx, func(doc *document) error {
		for i := range doc.Messages {
			rec := &doc.Messages[i]
			if rec.ID != id {
				continue
			}
			rec.Body = body
			at := updatedAt
			rec.UpdatedAt = &at
			updated = messageFromRecord(*rec)
			return nil
		}
		return domain.ErrMessageNotFound
	})
	return updated, err
}

func (r *ChatRepository) list(ctx context.Context, match func(messageRecord) bool) ([]domain.Message, error) {
	var out []domain.Message
	err := r.store.view(ctx, func(doc *document) error {
		for _, rec := range doc.Messages {
			if match(rec) {
				out = append(out, messageFromRecord(rec))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	domain.SortMessages(out)
	return out, nil
}

// conversation returns the conversation's rows in log order.
func (d *document) conversation(conversationID string) []domain.Message {
	var out []domain.Message
	for _, rec := range d.Messages {
		if rec.ConversationID == conversationID {
			out = append(out, messageFromRecord(rec))
		}
	}
	domain.SortMessages(out)
	return out
}

func messageToRecord(m domain.Message) messageRecord {
	return messageRecord{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		UserID:           m.UserID,
		AdminID:          m.AdminID,
		AdminDisplayName: m.AdminDisplayName,
		VisitorFirstName: m.VisitorFirstName,
		VisitorLastName:  m.VisitorLastName,
		VisitorEmail:     m.VisitorEmail,
		Body:             m.Body,
		Status:           string(m.Status),
		Deleted:          m.Deleted,
		ClosedAt:         m.ClosedAt,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func messageFromRecord(rec messageRecord) domain.Message {
	return domain.Message{
		ID:               rec.ID,
		ConversationID:   rec.ConversationID,
		UserID:           rec.UserID,
		AdminID:          rec.AdminID,
		AdminDisplayName: rec.AdminDisplayName,
		VisitorFirstName: rec.VisitorFirstName,
		VisitorLastName:  rec.VisitorLastName,
		VisitorEmail:     rec.VisitorEmail,
		Body:             rec.Body,
		State: domain.State{
			Status:   domain.Status(rec.Status),
			Deleted:  rec.Deleted,
			ClosedAt: rec.ClosedAt,
		},
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
