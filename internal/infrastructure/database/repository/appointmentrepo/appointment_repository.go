package appointmentrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/infrastructure/database/dbschema"
	"portal-api/internal/utils/platformerrors"
)

type AppointmentGormRepository struct {
	db *gorm.DB
}

var _ appointment.Repository = (*AppointmentGormRepository)(nil)

func NewAppointmentGormRepository(db *gorm.DB) *AppointmentGormRepository {
	return &AppointmentGormRepository{db: db}
}

// Create relies on ux_appointments_active_slot; a concurrent booking of the
// same slot fails with ErrSlotTaken.
func (repo *AppointmentGormRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	entity := dbschema.NewSchemaAppointment(a)
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entity).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appointment.ErrSlotTaken
		}
		return dbError(ctx, "failed to create appointment", err)
	}
	a.ID = entity.ID
	return nil
}

func (repo *AppointmentGormRepository) FindByID(ctx context.Context, id int64) (appointment.Appointment, error) {
	var entity dbschema.Appointment
	err := repo.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	if err != nil {
		return appointment.Appointment{}, dbError(ctx, "failed to find appointment", err)
	}
	return entity.EtoD(), nil
}

func (repo *AppointmentGormRepository) Reschedule(ctx context.Context, id int64, slot appointment.Slot, startsAt, updatedAt time.Time) (appointment.Appointment, error) {
	var updated dbschema.Appointment
	err := repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&dbschema.Appointment{}).
			Where("id = ? AND cancelled_at IS NULL", id).
			Updates(map[string]any{
				"slot_date":  slot.Date,
				"slot_time":  slot.Time,
				"starts_at":  startsAt,
				"updated_at": updatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return appointment.ErrNotFound
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	switch {
	case err == nil:
		return updated.EtoD(), nil
	case errors.Is(err, appointment.ErrNotFound):
		return appointment.Appointment{}, err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return appointment.Appointment{}, appointment.ErrSlotTaken
	}
	return appointment.Appointment{}, dbError(ctx, "failed to reschedule appointment", err)
}

func (repo *AppointmentGormRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	result := repo.db.WithContext(ctx).
		Model(&dbschema.Appointment{}).
		Where("id = ? AND cancelled_at IS NULL", id).
		Update("cancelled_at", at)
	if result.Error != nil {
		return dbError(ctx, "failed to cancel appointment", result.Error)
	}
	if result.RowsAffected == 0 {
		return appointment.ErrNotFound
	}
	return nil
}

func (repo *AppointmentGormRepository) SlotTaken(ctx context.Context, slot appointment.Slot, excludeID int64) (bool, error) {
	var count int64
	err := repo.db.WithContext(ctx).
		Model(&dbschema.Appointment{}).
		Where("slot_date = ? AND slot_time = ? AND cancelled_at IS NULL AND id <> ?", slot.Date, slot.Time, excludeID).
		Count(&count).Error
	if err != nil {
		return false, dbError(ctx, "failed to check slot", err)
	}
	return count > 0, nil
}

func (repo *AppointmentGormRepository) ListByUser(ctx context.Context, userID int64) ([]appointment.Appointment, error) {
	return repo.list(ctx, repo.db.WithContext(ctx).Where("user_id = ? AND cancelled_at IS NULL", userID))
}

func (repo *AppointmentGormRepository) ListActive(ctx context.Context) ([]appointment.Appointment, error) {
	return repo.list(ctx, repo.db.WithContext(ctx).Where("cancelled_at IS NULL"))
}

func (repo *AppointmentGormRepository) list(ctx context.Context, query *gorm.DB) ([]appointment.Appointment, error) {
	var entities []dbschema.Appointment
	if err := query.Order("starts_at ASC, id ASC").Find(&entities).Error; err != nil {
		return nil, dbError(ctx, "failed to list appointments", err)
	}
	out := make([]appointment.Appointment, 0, len(entities))
	for i := range entities {
		out = append(out, entities[i].EtoD())
	}
	return out, nil
}

func dbError(ctx context.Context, message string, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, message, err)
}
