package sqlitestore

import (
	"context"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	domain "portal-api/internal/domain/appointment"
)

const appointmentColumns = `id, user_id, name, email, slot_date, slot_time, starts_at, created_at, updated_at, cancelled_at`

// AppointmentRepository stores appointments. ux_appointments_active_slot
// keeps at most one active row per slot.
type AppointmentRepository struct {
	store *Store
}

// NewAppointmentRepository wraps a store.
func NewAppointmentRepository(store *Store) *AppointmentRepository {
	return &AppointmentRepository{store: store}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *domain.Appointment) error {
	return r.store.withImmediate(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `INSERT INTO appointments
			(user_id, name, email, slot_date, slot_time, starts_at, created_at, updated_at, cancelled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				a.UserID, a.Name, a.Email, a.Date, a.Time,
				a.StartsAt.UTC().UnixNano(), a.CreatedAt.UTC().UnixNano(), nullTime(a.UpdatedAt), nullTime(a.CancelledAt),
			},
		})
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		if err != nil {
			return err
		}
		a.ID = conn.LastInsertRowID()
		return nil
	})
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id int64) (domain.Appointment, error) {
	appts, err := r.list(ctx, `WHERE id = ?`, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if len(appts) == 0 {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return appts[0], nil
}

func (r *AppointmentRepository) Reschedule(ctx context.Context, id int64, slot domain.Slot, startsAt, updatedAt time.Time) (domain.Appointment, error) {
	err := r.store.withImmediate(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`UPDATE appointments SET slot_date = ?, slot_time = ?, starts_at = ?, updated_at = ? WHERE id = ? AND cancelled_at IS NULL`,
			&sqlitex.ExecOptions{Args: []any{slot.Date, slot.Time, startsAt.UTC().UnixNano(), updatedAt.UTC().UnixNano(), id}},
		)
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return r.FindByID(ctx, id)
}

func (r *AppointmentRepository) Cancel(ctx context.Context, id int64, at time.Time) error {
	return r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `UPDATE appointments SET cancelled_at = ? WHERE id = ? AND cancelled_at IS NULL`,
			&sqlitex.ExecOptions{Args: []any{at.UTC().UnixNano(), id}})
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (r *AppointmentRepository) SlotTaken(ctx context.Context, slot domain.Slot, excludeID int64) (bool, error) {
	var taken bool
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT 1 FROM appointments WHERE slot_date = ? AND slot_time = ? AND cancelled_at IS NULL AND id <> ? LIMIT 1`,
			&sqlitex.ExecOptions{
				Args: []any{slot.Date, slot.Time, excludeID},
				ResultFunc: func(*sqlite.Stmt) error {
					taken = true
					return nil
				},
			})
	})
	return taken, err
}

func (r *AppointmentRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Appointment, error) {
	return r.list(ctx, `WHERE user_id = ? AND cancelled_at IS NULL`, userID)
}

func (r *AppointmentRepository) ListActive(ctx context.Context) ([]domain.Appointment, error) {
	return r.list(ctx, `WHERE cancelled_at IS NULL`)
}

func (r *AppointmentRepository) list(ctx context.Context, where string, args ...any) ([]domain.Appointment, error) {
	var out []domain.Appointment
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`SELECT `+appointmentColumns+` FROM appointments `+where+` ORDER BY starts_at, id`,
			&sqlitex.ExecOptions{
				Args: args,
				ResultFunc: func(stmt *sqlite.Stmt) error {
					out = append(out, domain.Appointment{
						ID:          stmt.ColumnInt64(0),
						UserID:      stmt.ColumnInt64(1),
						Name:        stmt.ColumnText(2),
						Email:       stmt.ColumnText(3),
						Date:        stmt.ColumnText(4),
						Time:        stmt.ColumnText(5),
						StartsAt:    columnTime(stmt, 6),
						CreatedAt:   columnTime(stmt, 7),
						UpdatedAt:   columnNullTime(stmt, 8),
						CancelledAt: columnNullTime(stmt, 9),
					})
					return nil
				},
			})
	})
	return out, err
}
