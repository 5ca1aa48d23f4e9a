package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"portal-api/internal/domain/chat"
	"portal-api/internal/infrastructure/database/dbschema"
	"portal-api/internal/utils/platformerrors"
)

type ChatGormRepository struct {
	db *gorm.DB
}

var _ chat.Repository = (*ChatGormRepository)(nil)

func NewChatGormRepository(db *gorm.DB) *ChatGormRepository {
	return &ChatGormRepository{db: db}
}

// AppendTo and Transition serialize on a transaction scoped advisory lock
// keyed by the conversation id, which also covers conversations without rows.
func (repo *ChatGormRepository) AppendTo(ctx context.Context, conversationID string, build func([]chat.Message) (*chat.Message, error)) error {
	return repo.withConversationLock(ctx, conversationID, func(tx *gorm.DB, existing []chat.Message) error {
		m, err := build(existing)
		if err != nil {
			return err
		}
		entity := dbschema.NewSchemaChatMessage(m)
		if err := tx.Create(entity).Error; err != nil {
			return dbError(ctx, "failed to append chat message", err)
		}
		m.ID = entity.ID
		return nil
	})
}

func (repo *ChatGormRepository) ListConversation(ctx context.Context, conversationID string) ([]chat.Message, error) {
	return repo.list(ctx, repo.db.WithContext(ctx).Where("conversation_id = ?", conversationID))
}

func (repo *ChatGormRepository) ListParticipant(ctx context.Context, userID *int64, email string) ([]chat.Message, error) {
	query := repo.db.WithContext(ctx)
	switch {
	case userID != nil && email != "":
		query = query.Where("user_id = ? OR LOWER(visitor_email) = LOWER(?)", *userID, email)
	case userID != nil:
		query = query.Where("user_id = ?", *userID)
	case email != "":
		query = query.Where("LOWER(visitor_email) = LOWER(?)", email)
	default:
		return nil, nil
	}
	return repo.list(ctx, query)
}

func (repo *ChatGormRepository) ListAll(ctx context.Context) ([]chat.Message, error) {
	return repo.list(ctx, repo.db.WithContext(ctx))
}

func (repo *ChatGormRepository) Transition(ctx context.Context, conversationID string, next func([]chat.Message) (chat.State, error)) error {
	return repo.withConversationLock(ctx, conversationID, func(tx *gorm.DB, existing []chat.Message) error {
		state, err := next(existing)
		if err != nil {
			return err
		}
		err = tx.Model(&dbschema.ChatMessage{}).
			Where("conversation_id = ?", conversationID).
			Updates(map[string]any{
				"status":    string(state.Status),
				"deleted":   state.Deleted,
				"closed_at": state.ClosedAt,
			}).Error
		if err != nil {
			return dbError(ctx, "failed to update conversation state", err)
		}
		return nil
	})
}

func (repo *ChatGormRepository) withConversationLock(ctx context.Context, conversationID string, fn func(tx *gorm.DB, existing []chat.Message) error) error {
	return repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", conversationID).Error; err != nil {
			return dbError(ctx, "failed to lock conversation", err)
		}
		existing, err := repo.list(ctx, tx.Where("conversation_id = ?", conversationID))
		if err != nil {
			return err
		}
		return fn(tx, existing)
	})
}

func (repo *ChatGormRepository) FindMessage(ctx context.Context, id int64) (chat.Message, error) {
	var entity dbschema.ChatMessage
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, dbError(ctx, "failed to find chat message", err)
	}
	return entity.EtoD(), nil
}

func (repo *ChatGormRepository) UpdateBody(ctx context.Context, id int64, body string, updatedAt time.Time) (chat.Message, error) {
	result := repo.db.WithContext(ctx).
		Model(&dbschema.ChatMessage{}).
		Where("id = ?", id).
		Updates(map[string]any{"body": body, "updated_at": updatedAt})
	if result.Error != nil {
		return chat.Message{}, dbError(ctx, "failed to update chat message", result.Error)
	}
	if result.RowsAffected == 0 {
		return chat.Message{}, chat.ErrMessageNotFound
	}
	return repo.FindMessage(ctx, id)
}

func (repo *ChatGormRepository) list(ctx context.Context, query *gorm.DB) ([]chat.Message, error) {
	var entities []dbschema.ChatMessage
	if err := query.Order("created_at ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, dbError(ctx, "failed to list chat messages", err)
	}
	out := make([]chat.Message, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, nil
}

func dbError(ctx context.Context, message string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err)
}
