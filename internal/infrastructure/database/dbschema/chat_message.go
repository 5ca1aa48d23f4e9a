package dbschema

import (
	"time"

	"portal-api/internal/domain/chat"
)

// ChatMessage is one row of the conversation log. Status, Deleted and
// ClosedAt are stamped identically on every row of a conversation.
type ChatMessage struct {
	ID               int64      `gorm:"primaryKey"`
	ConversationID   string     `gorm:"type:varchar(80);not null;index"`
	UserID           *int64     `gorm:"index"`
	AdminID          *int64     `gorm:"column:admin_id"`
	AdminDisplayName string     `gorm:"type:varchar(255);not null;default:''"`
	VisitorFirstName string     `gorm:"type:varchar(255);not null;default:''"`
	VisitorLastName  string     `gorm:"type:varchar(255);not null;default:''"`
	VisitorEmail     string     `gorm:"type:varchar(320);not null;default:''"`
	Body             string     `gorm:"type:text;not null"`
	Status           string     `gorm:"type:varchar(20);not null;default:'open'"`
	Deleted          bool       `gorm:"not null;default:false"`
	ClosedAt         *time.Time `gorm:"column:closed_at"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        *time.Time `gorm:"autoUpdateTime:false"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// NewSchemaChatMessage converts a domain message into a schema instance.
func NewSchemaChatMessage(m *chat.Message) *ChatMessage {
	return &ChatMessage{
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

// EtoD converts a schema message back to the domain representation.
func (m *ChatMessage) EtoD() chat.Message {
	return chat.Message{
		ID:               m.ID,
		ConversationID:   m.ConversationID,
		UserID:           m.UserID,
		AdminID:          m.AdminID,
		AdminDisplayName: m.AdminDisplayName,
		VisitorFirstName: m.VisitorFirstName,
		VisitorLastName:  m.VisitorLastName,
		VisitorEmail:     m.VisitorEmail,
		Body:             m.Body,
		State: chat.State{
			Status:   chat.Status(m.Status),
			Deleted:  m.Deleted,
			ClosedAt: utcPtr(m.ClosedAt),
		},
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: utcPtr(m.UpdatedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
