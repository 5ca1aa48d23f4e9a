package filestore

import (
	"context"
	"sort"
	"time"

	domain "portal-api/internal/domain/appointment"
)

// AppointmentRepository stores appointments in the JSON document. Slot
// exclusivity holds because the check and the write happen inside one
// serialized update.
type AppointmentRepository struct {
	store *Store
}

// NewAppointmentRepository wraps a store.
func NewAppointmentRepository(store *Store) *AppointmentRepository {
	return &AppointmentRepository{store: store}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *domain.Appointment) error {
	return r.store.update(ctx, func(doc *document) error {
		if slotHeld(doc, a.Date, a.Time, 0) {
			return domain.ErrSlotTaken
		}
		a.ID = doc.nextAppointmentID()
		doc.Appointments = append(doc.Appointments, appointmentToRecord(*a))
		return nil
	})
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id int64) (domain.Appointment, error) {
	var found domain.Appointment
	err := r.store.view(ctx, func(doc *document) error {
		for _, rec := range doc.Appointments {
			if rec.ID == id {
				found = appointmentFromRecord(rec)
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return found, err
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id int64, slot domain.Slot, startsAt, updatedAt time.Time) (domain.Appointment, error) {
	var updated domain.Appointment
	err := r.store.update(ctx, func(doc *document) error {
		rec := activeRecord(doc, id)
		if rec == nil {
			return domain.ErrNotFound
		}
		if slotHeld(doc, slot.Date, slot.Time, id) {
			return domain.ErrSlotTaken
		}
		rec.Date = slot.Date
		rec.Time = slot.Time
		rec.StartsAt = startsAt
		at := updatedAt
		rec.UpdatedAt = &at
		updated = appointmentFromRecord(*rec)
		return nil
	})
	return updated, err
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	return r.store.update(ctx, func(doc *document) error {
		rec := activeRecord(doc, id)
		if rec == nil {
			return domain.ErrNotFound
		}
		cancelledAt := at
		rec.CancelledAt = &cancelledAt
		return nil
	})
}

func (r *AppointmentRepository) SlotTaken(ctx context.Context, slot domain.Slot, excludeID int64) (bool, error) {
	var taken bool
	err := r.store.view(ctx, func(doc *document) error {
		taken = slotHeld(doc, slot.Date, slot.Time, excludeID)
		return nil
	})
	return taken, err
}

func (r *AppointmentRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Appointment, error) {
	return r.listActive(ctx, func(rec appointmentRecord) bool { return rec.UserID == userID })
}

func (r *AppointmentRepository) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	return r.listActive(ctx, func(appointmentRecord) bool { return true })
}

func (r *AppointmentRepository) listActive(ctx context.Context, match func(appointmentRecord) bool) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.store.view(ctx, func(doc *document) error {
		for _, rec := range doc.Appointments {
			if rec.CancelledAt == nil && match(rec) {
				out = append(out, appointmentFromRecord(rec))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func slotHeld(doc *document, date, clock string, excludeID int64) bool {
	for _, rec := range doc.Appointments {
		if rec.CancelledAt == nil && rec.ID != excludeID && rec.Date == date && rec.Time == clock {
			return true
		}
	}
	return false
}

func activeRecord(doc *document, id int64) *appointmentRecord {
	for i := range doc.Appointments {
		if doc.Appointments[i].ID == id && doc.Appointments[i].CancelledAt == nil {
			return &doc.Appointments[i]
		}
	}
	return nil
}

func appointmentToRecord(a domain.Appointment) appointmentRecord {
	return appointmentRecord{
		ID:          a.ID,
		UserID:      a.UserID,
		Name:        a.Name,
		Email:       a.Email,
		Date:        a.Date,
		Time:        a.Time,
		StartsAt:    a.StartsAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		CancelledAt: a.CancelledAt,
	}
}

func appointmentFromRecord(rec appointmentRecord) domain.Appointment {
	return domain.Appointment{
		ID:          rec.ID,
		UserID:      rec.UserID,
		Name:        rec.Name,
		Email:       rec.Email,
		Date:        rec.Date,
		Time:        rec.Time,
		StartsAt:    rec.StartsAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CancelledAt: rec.CancelledAt,
	}
}
