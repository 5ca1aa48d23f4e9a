package userrepo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/database/dbschema"
	"portal-api/internal/utils/platformerrors"
)

type UserGormRepository struct {
	db *gorm.DB
}

var _ user.Repository = (*UserGormRepository)(nil)

func NewUserGormRepository(db *gorm.DB) *UserGormRepository {
	return &UserGormRepository{db: db}
}

func (repo *UserGormRepository) Create(ctx context.Context, u *user.User) error {
	entity := dbschema.NewSchemaUser(u)
	if err := repo.db.WithContext(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return user.ErrEmailTaken
		}
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create user", err)
	}
	u.ID = entity.ID
	return nil
}

func (repo *UserGormRepository) FindByID(ctx context.Context, id int64) (user.User, error) {
	return repo.first(ctx, "failed to find user by ID", "id = ?", id)
}

func (repo *UserGormRepository) FindByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.first(ctx, "failed to find user by email", "LOWER(email) = LOWER(?)", email)
}

func (repo *UserGormRepository) List(ctx context.Context) ([]user.User, error) {
	var entities []dbschema.User
	if err := repo.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&entities).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list users", err)
	}
	users := make([]user.User, 0, len(entities))
	for i := range entities {
		users = append(users, entities[i].EtoD())
	}
	return users, nil
}

func (repo *UserGormRepository) Update(ctx context.Context, u *user.User) error {
	result := repo.db.WithContext(ctx).
		Model(&dbschema.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"email":      u.Email,
			"role":       string(u.Role),
		})
	if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
		return user.ErrEmailTaken
	}
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update user", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Delete relies on the foreign keys: appointments cascade, chat message
// references are set to NULL.
func (repo *UserGormRepository) Delete(ctx context.Context, id int64) error {
	result := repo.db.WithContext(ctx).Delete(&dbschema.User{}, id)
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete user", result.Error)
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *UserGormRepository) first(ctx context.Context, message string, query string, args ...any) (user.User, error) {
	var entity dbschema.User
	err := repo.db.WithContext(ctx).Where(query, args...).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err)
	}
	return entity.EtoD(), nil
}
