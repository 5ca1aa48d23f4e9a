package sqlitestore

import (
	"context"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	domain "portal-api/internal/domain/chat"
)

const messageColumns = `id, conversation_id, user_id, admin_id, admin_display_name,
	visitor_first_name, visitor_last_name, visitor_email, body,
	status, deleted, closed_at, created_at, updated_at`

// ChatRepository stores the message log in chat_messages.
type ChatRepository struct {
	store *Store
}

// NewChatRepository wraps a store.
func NewChatRepository(store *Store) *ChatRepository {
	return &ChatRepository{store: store}
}

// AppendTo holds the write lock from the read through the insert.
func (r *ChatRepository) AppendTo(ctx context.Context, conversationID string, build func([]domain.Message) (*domain.Message, error)) error {
	return r.store.withImmediate(ctx, func(conn *sqlite.Conn) error {
		existing, err := listMessages(conn, `WHERE conversation_id = ?`, conversationID)
		if err != nil {
			return err
		}
		m, err := build(existing)
		if err != nil {
			return err
		}
		return insertMessage(conn, m)
	})
}

func insertMessage(conn *sqlite.Conn, m *domain.Message) error {
	err := sqlitex.Execute(conn, `INSERT INTO chat_messages (
		conversation_id, user_id, admin_id, admin_display_name,
		visitor_first_name, visitor_last_name, visitor_email, body,
		status, deleted, closed_at, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{
			m.ConversationID, nullInt(m.UserID), nullInt(m.AdminID), m.AdminDisplayName,
			m.VisitorFirstName, m.VisitorLastName, m.VisitorEmail, m.Body,
			string(m.Status), boolInt(m.Deleted), nullTime(m.ClosedAt), m.CreatedAt.UTC().UnixNano(), nullTime(m.UpdatedAt),
		},
	})
	if err != nil {
		return err
	}
	m.ID = conn.LastInsertRowID()
	return nil
}

func (r *ChatRepository) ListConversation(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return r.list(ctx, `WHERE conversation_id = ?`, conversationID)
}

func (r *ChatRepository) ListParticipant(ctx context.Context, userID *int64, email string) ([]domain.Message, error) {
	switch {
	case userID != nil && email != "":
		return r.list(ctx, `WHERE user_id = ? OR visitor_email = ? COLLATE NOCASE`, *userID, email)
	case userID != nil:
		return r.list(ctx, `WHERE user_id = ?`, *userID)
	case email != "":
		return r.list(ctx, `WHERE visitor_email = ? COLLATE NOCASE`, email)
	}
	return nil, nil
}

func (r *ChatRepository) ListAll(ctx context.Context) ([]domain.Message, error) {
	return r.list(ctx, "")
}

func (r *ChatRepository) Transition(ctx context.Context, conversationID string, next func([]domain.Message) (domain.State, error)) error {
	return r.store.withImmediate(ctx, func(conn *sqlite.Conn) error {
		existing, err := listMessages(conn, `WHERE conversation_id = ?`, conversationID)
		if err != nil {
			return err
		}
		state, err := next(existing)
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn,
			`UPDATE chat_messages SET status = ?, deleted = ?, closed_at = ? WHERE conversation_id = ?`,
			&sqlitex.ExecOptions{Args: []any{string(state.Status), boolInt(state.Deleted), nullTime(state.ClosedAt), conversationID}},
		)
	})
}

func (r *ChatRepository) FindMessage(ctx context.Context, id int64) (domain.Message, error) {
	msgs, err := r.list(ctx, `WHERE id = ?`, id)
	if err != nil {
		return domain.Message{}, err
	}
	if len(msgs) == 0 {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return msgs[0], nil
}

func (r *ChatRepository) UpdateBody(ctx context.Context, id int64, body string, updatedAt time.Time) (domain.Message, error) {
	var changed int
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE chat_messages SET body = ?, updated_at = ? WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{body, updatedAt.UTC().UnixNano(), id}})
		changed = conn.Changes()
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	if changed == 0 {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return r.FindMessage(ctx, id)
}

func (r *ChatRepository) list(ctx context.Context, where string, args ...any) ([]domain.Message, error) {
	var out []domain.Message
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		out, err = listMessages(conn, where, args...)
		return err
	})
	return out, err
}

func listMessages(conn *sqlite.Conn, where string, args ...any) ([]domain.Message, error) {
	var out []domain.Message
	err := sqlitex.Execute(conn,
		`SELECT `+messageColumns+` FROM chat_messages `+where+` ORDER BY created_at, id`,
		&sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				out = append(out, scanMessage(stmt))
				return nil
			},
		})
	return out, err
}

func scanMessage(stmt *sqlite.Stmt) domain.Message {
	return domain.Message{
		ID:               stmt.ColumnInt64(0),
		ConversationID:   stmt.ColumnText(1),
		UserID:           columnNullInt(stmt, 2),
		AdminID:          columnNullInt(stmt, 3),
		AdminDisplayName: stmt.ColumnText(4),
		VisitorFirstName: stmt.ColumnText(5),
		VisitorLastName:  stmt.ColumnText(6),
		VisitorEmail:     stmt.ColumnText(7),
		Body:             stmt.ColumnText(8),
		State: domain.State{
			Status:   domain.Status(stmt.ColumnText(9)),
			Deleted:  stmt.ColumnInt64(10) != 0,
			ClosedAt: columnNullTime(stmt, 11),
		},
		CreatedAt: columnTime(stmt, 12),
		UpdatedAt: columnNullTime(stmt, 13),
	}
}
