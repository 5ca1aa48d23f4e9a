package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portal-api/internal/domain/identity"
	"portal-api/internal/domain/notification"
	"portal-api/internal/utils/pii"
	"portal-api/internal/utils/platformerrors"
)

// BookInput is the booking form of an authenticated user.
type BookInput struct {
	UserID int64
	Name   string
	Email  string
	Date   string
	Time   string
}

// Service describes the slot allocator.
type Service interface {
	Book(ctx context.Context, in BookInput) (Appointment, error)
	Reschedule(ctx context.Context, id, userID int64, date, clock string) (Appointment, error)
	Cancel(ctx context.Context, id, userID int64) error
	CancelAny(ctx context.Context, id int64) error
	ListMine(ctx context.Context, userID int64) ([]Appointment, error)
	BookedSlots(ctx context.Context) ([]Slot, error)
	ListAll(ctx context.Context) ([]Appointment, error)
}

type service struct {
	repo       Repository
	locker     SlotLocker
	dispatcher notification.Dispatcher
	sanitizer  *pii.Sanitizer
	location   *time.Location
	log        zerolog.Logger
	now        func() time.Time
}

// NewService wires the appointment service. Slots are interpreted in loc.
func NewService(repo Repository, locker SlotLocker, dispatcher notification.Dispatcher, sanitizer *pii.Sanitizer, loc *time.Location, log zerolog.Logger) Service {
	if dispatcher == nil {
		dispatcher = notification.Noop{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &service{
		repo:       repo,
		locker:     locker,
		dispatcher: dispatcher,
		sanitizer:  sanitizer,
		location:   loc,
		log:        log.With().Str("component", "appointment-service").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ParseSlot validates a date and time against the booking grid.
func ParseSlot(ctx context.Context, date, clock string) (Slot, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return Slot{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "date and time are required")
	}
	if !ValidDate(date) {
		return Slot{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid date")
	}
	if !ValidTime(clock) {
		return Slot{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid time, only 30-minute slots are allowed")
	}
	return Slot{Date: date, Time: clock}, nil
}

func (s *service) Book(ctx context.Context, in BookInput) (Appointment, error) {
	name := strings.TrimSpace(in.Name)
	email := identity.NormalizeEmail(in.Email)
	if name == "" || email == "" || strings.TrimSpace(in.Date) == "" || strings.TrimSpace(in.Time) == "" {
		return Appointment{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "name, email, date and time are required")
	}
	if !identity.ValidEmail(email) {
		return Appointment{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid email address")
	}
	slot, err := ParseSlot(ctx, in.Date, in.Time)
	if err != nil {
		return Appointment{}, err
	}
	startsAt, err := slot.StartsAt(s.location)
	if err != nil {
		return Appointment{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "date/time could not be processed")
	}

	unlock, err := s.lock(ctx, slot)
	if err != nil {
		return Appointment{}, err
	}
	defer unlock()

	if err := s.ensureFree(ctx, slot, 0); err != nil {
		return Appointment{}, err
	}

	appt := Appointment{
		UserID:    in.UserID,
		Name:      name,
		Email:     email,
		Date:      slot.Date,
		Time:      slot.Time,
		StartsAt:  startsAt,
		CreatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, &appt); err != nil {
		if errors.Is(err, ErrSlotTaken) {
			return Appointment{}, slotTaken(ctx, err)
		}
		return Appointment{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to book appointment")
	}

	s.log.Info().
		Int64("appointment_id", appt.ID).
		Int64("user_id", appt.UserID).
		Str("slot", slot.Key()).
		Str("email", s.sanitizer.Email(email)).
		Msg("appointment booked")

	s.dispatcher.Dispatch(ctx, notification.Notification{
		Event:   notification.EventAppointmentBooked,
		Subject: "New application appointment booked",
		Lines: []string{
			"A new application appointment was booked.",
			"Name: " + name,
			"Email: " + email,
			"Date: " + slot.Date,
			"Time: " + slot.Time,
			fmt.Sprintf("User ID: %d", in.UserID),
		},
		Fields: map[string]string{
			"appointment_id": strconv.FormatInt(appt.ID, 10),
			"date":           slot.Date,
			"time":           slot.Time,
			"email":          email,
		},
		OccurredAt: appt.CreatedAt,
	})
	return appt, nil
}

func (s *service) Reschedule(ctx context.Context, id, userID int64, date, clock string) (Appointment, error) {
	if id <= 0 {
		return Appointment{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid appointment id")
	}
	slot, err := ParseSlot(ctx, date, clock)
	if err != nil {
		return Appointment{}, err
	}
	startsAt, err := slot.StartsAt(s.location)
	if err != nil {
		return Appointment{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "date/time could not be processed")
	}

	if _, err := s.owned(ctx, id, userID); err != nil {
		return Appointment{}, err
	}

	unlock, err := s.lock(ctx, slot)
	if err != nil {
		return Appointment{}, err
	}
	defer unlock()

	if err := s.ensureFree(ctx, slot, id); err != nil {
		return Appointment{}, err
	}

	updated, err := s.repo.Reschedule(ctx, id, slot, startsAt, s.now())
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return Appointment{}, slotTaken(ctx, err)
		case errors.Is(err, ErrNotFound):
			return Appointment{}, notFound(ctx)
		}
		return Appointment{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to reschedule appointment")
	}
	s.log.Info().Int64("appointment_id", id).Str("slot", slot.Key()).Msg("appointment rescheduled")
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, id, userID int64) error {
	if id <= 0 {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid appointment id")
	}
	if _, err := s.owned(ctx, id, userID); err != nil {
		return err
	}
	return s.cancel(ctx, id)
}

func (s *service) CancelAny(ctx context.Context, id int64) error {
	if id <= 0 {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid appointment id")
	}
	return s.cancel(ctx, id)
}

func (s *service) ListMine(ctx context.Context, userID int64) ([]Appointment, error) {
	appts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load appointments")
	}
	return appts, nil
}

func (s *service) BookedSlots(ctx context.Context) ([]Slot, error) {
	appts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load booked slots")
	}
	slots := make([]Slot, 0, len(appts))
	for _, a := range appts {
		slots = append(slots, a.Slot())
	}
	return slots, nil
}

func (s *service) ListAll(ctx context.Context) ([]Appointment, error) {
	appts, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load appointments")
	}
	return appts, nil
}

func (s *service) cancel(ctx context.Context, id int64) error {
	if err := s.repo.Cancel(ctx, id, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(ctx)
		}
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to cancel appointment")
	}
	s.log.Info().Int64("appointment_id", id).Msg("appointment cancelled")
	return nil
}

// owned loads an active appointment and checks that userID owns it.
func (s *service) owned(ctx context.Context, id, userID int64) (Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Appointment{}, notFound(ctx)
		}
		return Appointment{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load appointment")
	}
	if !appt.Active() {
		return Appointment{}, notFound(ctx)
	}
	if appt.UserID != userID {
		return Appointment{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden, "appointment belongs to another user", nil)
	}
	return appt, nil
}

func (s *service) lock(ctx context.Context, slot Slot) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, slot.Key())
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "failed to reserve appointment slot", err)
	}
	return unlock, nil
}

// ensureFree is the fast-path occupancy check; the repository write is the
// authoritative one.
func (s *service) ensureFree(ctx context.Context, slot Slot, excludeID int64) error {
	taken, err := s.repo.SlotTaken(ctx, slot, excludeID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to check appointment slot")
	}
	if taken {
		return slotTaken(ctx, ErrSlotTaken)
	}
	return nil
}

func slotTaken(ctx context.Context, err error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "this appointment slot is already booked", err)
}

func notFound(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "appointment not found", nil)
}
