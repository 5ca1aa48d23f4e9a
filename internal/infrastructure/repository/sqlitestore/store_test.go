package sqlitestore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "portal.db"), 4, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestUserRepository(t *testing.T) {
	repo := NewUserRepository(openStore(t))
	ctx := context.Background()

	u := &user.User{FirstName: "Ada", LastName: "L", Email: "ada@example.com", PasswordHash: "h", Role: user.RoleAdmin, CreatedAt: time.Now().UTC()}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotZero(t, u.ID)

	dup := &user.User{FirstName: "X", LastName: "Y", Email: "ADA@example.com", PasswordHash: "h", Role: user.RoleApplicant, CreatedAt: time.Now().UTC()}
	assert.ErrorIs(t, repo.Create(ctx, dup), user.ErrEmailTaken)

	found, err := repo.FindByEmail(ctx, "Ada@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	assert.True(t, found.IsAdmin())

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func appendMessage(repo *ChatRepository, m *chat.Message) error {
	return repo.AppendTo(context.Background(), m.ConversationID, func([]chat.Message) (*chat.Message, error) {
		return m, nil
	})
}

func TestChatRepository(t *testing.T) {
	repo := NewChatRepository(openStore(t))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	uid := int64(4)

	for i, body := range []string{"first", "second"} {
		m := &chat.Message{
			ConversationID:   "chat_a",
			UserID:           &uid,
			VisitorFirstName: "Max",
			VisitorLastName:  "M",
			VisitorEmail:     "max@example.com",
			Body:             body,
			State:            chat.State{Status: chat.StatusOpen},
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, appendMessage(repo, m))
		assert.NotZero(t, m.ID)
	}
	require.NoError(t, appendMessage(repo, &chat.Message{ConversationID: "chat_b", VisitorEmail: "other@example.com", Body: "x", State: chat.State{Status: chat.StatusOpen}, CreatedAt: base}))

	msgs, err := repo.ListConversation(ctx, "chat_a")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Body)
	require.NotNil(t, msgs[0].UserID)
	assert.Equal(t, uid, *msgs[0].UserID)
	assert.Nil(t, msgs[0].AdminID)
	assert.True(t, msgs[1].CreatedAt.Equal(base.Add(time.Minute)))

	byEmail, err := repo.ListParticipant(ctx, nil, "MAX@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 2)
	byUser, err := repo.ListParticipant(ctx, &uid, "")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)
	none, err := repo.ListParticipant(ctx, nil, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	closedAt := base.Add(time.Hour)
	var seen int
	err = repo.Transition(ctx, "chat_a", func(existing []chat.Message) (chat.State, error) {
		seen = len(existing)
		return chat.State{Status: chat.StatusDone, ClosedAt: &closedAt}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)

	refused := errors.New("refused")
	err = repo.AppendTo(ctx, "chat_a", func([]chat.Message) (*chat.Message, error) { return nil, refused })
	assert.ErrorIs(t, err, refused)
	err = repo.Transition(ctx, "chat_a", func([]chat.Message) (chat.State, error) { return chat.State{}, refused })
	assert.ErrorIs(t, err, refused)

	msgs, err = repo.ListConversation(ctx, "chat_a")
	require.NoError(t, err)
	for _, m := range msgs {
		assert.Equal(t, chat.StatusDone, m.Status)
		require.NotNil(t, m.ClosedAt)
		assert.True(t, m.ClosedAt.Equal(closedAt))
	}

	edited, err := repo.UpdateBody(ctx, msgs[0].ID, "edited", base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Body)
	require.NotNil(t, edited.UpdatedAt)

	_, err = repo.UpdateBody(ctx, 999, "x", base)
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)
	_, err = repo.FindMessage(ctx, 999)
	assert.ErrorIs(t, err, chat.ErrMessageNotFound)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func newAppointment(userID int64, date, clock string) *appointment.Appointment {
	slot := appointment.Slot{Date: date, Time: clock}
	startsAt, _ := slot.StartsAt(time.UTC)
	return &appointment.Appointment{
		UserID:    userID,
		Name:      "N",
		Email:     "n@example.com",
		Date:      date,
		Time:      clock,
		StartsAt:  startsAt,
		CreatedAt: time.Now().UTC(),
	}
}

func TestAppointmentRepository_PartialUniqueIndex(t *testing.T) {
	repo := NewAppointmentRepository(openStore(t))
	ctx := context.Background()

	first := newAppointment(1, "2025-06-02", "09:00")
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, newAppointment(2, "2025-06-02", "09:00")), appointment.ErrSlotTaken)

	taken, err := repo.SlotTaken(ctx, first.Slot(), 0)
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = repo.SlotTaken(ctx, first.Slot(), first.ID)
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, repo.Cancel(ctx, first.ID, time.Now()))
	assert.ErrorIs(t, repo.Cancel(ctx, first.ID, time.Now()), appointment.ErrNotFound)
	require.NoError(t, repo.Create(ctx, newAppointment(2, "2025-06-02", "09:00")))

	cancelled, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.Active())
}

func TestAppointmentRepository_Reschedule(t *testing.T) {
	repo := NewAppointmentRepository(openStore(t))
	ctx := context.Background()

	mine := newAppointment(1, "2025-06-02", "09:00")
	other := newAppointment(2, "2025-06-02", "10:00")
	require.NoError(t, repo.Create(ctx, mine))
	require.NoError(t, repo.Create(ctx, other))

	now := time.Now().UTC()
	_, err := repo.Reschedule(ctx, mine.ID, other.Slot(), other.StartsAt, now)
	assert.ErrorIs(t, err, appointment.ErrSlotTaken)

	same, err := repo.Reschedule(ctx, mine.ID, mine.Slot(), mine.StartsAt, now)
	require.NoError(t, err)
	assert.Equal(t, "09:00", same.Time)

	target := appointment.Slot{Date: "2025-06-03", Time: "15:30"}
	at, err := target.StartsAt(time.UTC)
	require.NoError(t, err)
	moved, err := repo.Reschedule(ctx, mine.ID, target, at, now)
	require.NoError(t, err)
	assert.Equal(t, target, moved.Slot())
	require.NotNil(t, moved.UpdatedAt)

	_, err = repo.Reschedule(ctx, 999, target, at, now)
	assert.ErrorIs(t, err, appointment.ErrNotFound)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, other.ID, active[0].ID, "ordered by start")

	mineList, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mineList, 1)
}

func TestAppointmentRepository_ConcurrentCreate(t *testing.T) {
	repo := NewAppointmentRepository(openStore(t))
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, newAppointment(int64(i+1), "2025-06-04", "14:00"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appointment.ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflicts)
}

func TestOpen_ReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.db")
	ctx := context.Background()

	store, err := Open(ctx, path, 2, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, NewUserRepository(store).Create(ctx, &user.User{FirstName: "A", LastName: "B", Email: "a@b.co", PasswordHash: "h", Role: user.RoleApplicant, CreatedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = Open(ctx, path, 2, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()
	_, err = NewUserRepository(store).FindByEmail(ctx, "a@b.co")
	assert.NoError(t, err)
}

func TestUserRepository_UpdateAndDeleteDetachesRecords(t *testing.T) {
	store := openStore(t)
	users := NewUserRepository(store)
	appts := NewAppointmentRepository(store)
	chats := NewChatRepository(store)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	admin := &user.User{FirstName: "Ada", LastName: "L", Email: "ada@example.com", PasswordHash: "h", Role: user.RoleAdmin, CreatedAt: base}
	anna := &user.User{FirstName: "Anna", LastName: "B", Email: "anna@example.com", PasswordHash: "h", Role: user.RoleApplicant, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, users.Create(ctx, admin))
	require.NoError(t, users.Create(ctx, anna))

	anna.Email = "ADA@example.com"
	assert.ErrorIs(t, users.Update(ctx, anna), user.ErrEmailTaken)
	anna.Email, anna.Role = "anna@example.com", user.RoleAdmin
	require.NoError(t, users.Update(ctx, anna))
	assert.ErrorIs(t, users.Update(ctx, &user.User{ID: 999, Email: "x@example.com"}), user.ErrNotFound)

	listed, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, anna.ID, listed[0].ID)
	assert.True(t, listed[0].IsAdmin())

	booking := newAppointment(anna.ID, "2025-06-02", "10:00")
	require.NoError(t, appts.Create(ctx, booking))
	question := chat.Message{ConversationID: "chat_a", UserID: &anna.ID, Body: "hi", State: chat.State{Status: chat.StatusOpen}, CreatedAt: base}
	require.NoError(t, appendMessage(chats, &question))
	answer := chat.Message{ConversationID: "chat_b", UserID: &admin.ID, AdminID: &anna.ID, Body: "hello", State: chat.State{Status: chat.StatusOpen}, CreatedAt: base}
	require.NoError(t, appendMessage(chats, &answer))

	require.NoError(t, users.Delete(ctx, anna.ID))
	assert.ErrorIs(t, users.Delete(ctx, anna.ID), user.ErrNotFound)

	_, err = appts.FindByID(ctx, booking.ID)
	assert.ErrorIs(t, err, appointment.ErrNotFound)

	first, err := chats.FindMessage(ctx, question.ID)
	require.NoError(t, err)
	assert.Nil(t, first.UserID)
	second, err := chats.FindMessage(ctx, answer.ID)
	require.NoError(t, err)
	assert.Nil(t, second.AdminID)
	require.NotNil(t, second.UserID)
	assert.Equal(t, admin.ID, *second.UserID)
}
