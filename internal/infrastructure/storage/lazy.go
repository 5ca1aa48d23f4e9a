package storage

import (
	"context"
	"time"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
)

// Users returns a user repository that resolves the backend per call.
func (m *Manager) Users() user.Repository { return lazyUsers{m} }

// Chats returns a chat repository that resolves the backend per call.
func (m *Manager) Chats() chat.Repository { return lazyChats{m} }

// Appointments returns an appointment repository that resolves the backend per call.
func (m *Manager) Appointments() appointment.Repository { return lazyAppointments{m} }

type lazyUsers struct{ m *Manager }

func (l lazyUsers) Create(ctx context.Context, u *user.User) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Users.Create(ctx, u)
}

func (l lazyUsers) FindByID(ctx context.Context, id int64) (user.User, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return user.User{}, err
	}
	return b.Users.FindByID(ctx, id)
}

func (l lazyUsers) FindByEmail(ctx context.Context, email string) (user.User, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return user.User{}, err
	}
	return b.Users.FindByEmail(ctx, email)
}

func (l lazyUsers) List(ctx context.Context) ([]user.User, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Users.List(ctx)
}

func (l lazyUsers) Update(ctx context.Context, u *user.User) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Users.Update(ctx, u)
}

func (l lazyUsers) Delete(ctx context.Context, id int64) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Users.Delete(ctx, id)
}

type lazyChats struct{ m *Manager }

func (l lazyChats) AppendTo(ctx context.Context, conversationID string, build func([]chat.Message) (*chat.Message, error)) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Chats.AppendTo(ctx, conversationID, build)
}

func (l lazyChats) ListConversation(ctx context.Context, conversationID string) ([]chat.Message, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Chats.ListConversation(ctx, conversationID)
}

func (l lazyChats) ListParticipant(ctx context.Context, userID *int64, email string) ([]chat.Message, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Chats.ListParticipant(ctx, userID, email)
}

func (l lazyChats) ListAll(ctx context.Context) ([]chat.Message, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Chats.ListAll(ctx)
}

func (l lazyChats) Transition(ctx context.Context, conversationID string, next func([]chat.Message) (chat.State, error)) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Chats.Transition(ctx, conversationID, next)
}

func (l lazyChats) FindMessage(ctx context.Context, id int64) (chat.Message, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return chat.Message{}, err
	}
	return b.Chats.FindMessage(ctx, id)
}

func (l lazyChats) UpdateBody(ctx context.Context, id int64, body string, updatedAt time.Time) (chat.Message, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return chat.Message{}, err
	}
	return b.Chats.UpdateBody(ctx, id, body, updatedAt)
}

type lazyAppointments struct{ m *Manager }

func (l lazyAppointments) Create(ctx context.Context, a *appointment.Appointment) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Appointments.Create(ctx, a)
}

func (l lazyAppointments) FindByID(ctx context.Context, id int64) (appointment.Appointment, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return b.Appointments.FindByID(ctx, id)
}

func (l lazyAppointments) Reschedule(ctx context.Context, id int64, slot appointment.Slot, startsAt, updatedAt time.Time) (appointment.Appointment, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return appointment.Appointment{}, err
	}
	return b.Appointments.Reschedule(ctx, id, slot, startsAt, updatedAt)
}

func (l lazyAppointments) Cancel(ctx context.Context, id int64, at time.Time) error {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return err
	}
	return b.Appointments.Cancel(ctx, id, at)
}

func (l lazyAppointments) SlotTaken(ctx context.Context, slot appointment.Slot, excludeID int64) (bool, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return false, err
	}
	return b.Appointments.SlotTaken(ctx, slot, excludeID)
}

func (l lazyAppointments) ListByUser(ctx context.Context, userID int64) ([]appointment.Appointment, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Appointments.ListByUser(ctx, userID)
}

func (l lazyAppointments) ListActive(ctx context.Context) ([]appointment.Appointment, error) {
	b, err := l.m.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return b.Appointments.ListActive(ctx)
}
