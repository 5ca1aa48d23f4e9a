package dbschema

import (
	"time"

	"portal-api/internal/domain/appointment"
)

// Appointment is a booked slot. At most one row per (slot_date, slot_time)
// has a NULL cancelled_at; the migration enforces it with a partial unique index.
type Appointment struct {
	ID          int64      `gorm:"primaryKey"`
	UserID      int64      `gorm:"not null;index"`
	Name        string     `gorm:"type:varchar(255);not null"`
	Email       string     `gorm:"type:varchar(320);not null"`
	SlotDate    string     `gorm:"type:char(10);not null"`
	SlotTime    string     `gorm:"type:char(5);not null"`
	StartsAt    time.Time  `gorm:"not null"`
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// NewSchemaAppointment converts a domain appointment into a schema instance.
func NewSchemaAppointment(a *appointment.Appointment) *Appointment {
	return &Appointment{
		ID:          a.ID,
		UserID:      a.UserID,
		Name:        a.Name,
		Email:       a.Email,
		SlotDate:    a.Date,
		SlotTime:    a.Time,
		StartsAt:    a.StartsAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		CancelledAt: a.CancelledAt,
	}
}

// EtoD converts a schema appointment back to the domain representation.
func (a *Appointment) EtoD() appointment.Appointment {
	return appointment.Appointment{
		ID:          a.ID,
		UserID:      a.UserID,
		Name:        a.Name,
		Email:       a.Email,
		Date:        a.SlotDate,
		Time:        a.SlotTime,
		StartsAt:    a.StartsAt.UTC(),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(a.UpdatedAt),
		CancelledAt: utcPtr(a.CancelledAt),
	}
}
