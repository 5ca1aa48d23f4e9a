package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no active appointment matches.
	ErrNotFound = errors.New("appointment not found")
	// ErrSlotTaken is returned when another active appointment holds the slot.
	ErrSlotTaken = errors.New("appointment slot already booked")
)

// Repository persists appointments. Create and Reschedule must reject a slot
// held by another active appointment with ErrSlotTaken atomically with the write.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, id int64) (Appointment, error)
	Reschedule(ctx context.Context, id int64, slot Slot, startsAt, updatedAt time.Time) (Appointment, error)
	Cancel(ctx context.Context, id int64, at time.Time) error
	SlotTaken(ctx context.Context, slot Slot, excludeID int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]Appointment, error)
	ListActive(ctx context.Context) ([]Appointment, error)
}

// SlotLocker serializes booking attempts on the same slot key.
type SlotLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}
