package filestore

import (
	"context"
	"errors"
	"os"
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

const legacyDocumentJSON = `{
  "users": [
    {"id": 3, "vorname": "Ada", "nachname": "Lovelace", "email": "ADA@example.com", "passwort": "$2a$10$hash", "user_typ": "admin", "created_at": "2024-01-01T10:00:00Z"}
  ],
  "chats": [
    {"id": 7, "conversation_id": "chat_abc", "visitor_vorname": "Max", "visitor_nachname": "Muster", "visitor_email": "max@example.com", "nachricht": "Hallo", "conversation_status": "in_bearbeitung", "conversation_deleted": false, "created_at": "2024-01-02T10:00:00Z"},
    {"id": 8, "conversation_id": "chat_abc", "admin_id": 3, "admin_anzeigename": "Support", "visitor_vorname": "Max", "visitor_nachname": "Muster", "visitor_email": "max@example.com", "nachricht": "Hi", "conversation_status": "geschlossen", "conversation_closed_at": "2024-01-02T11:00:00Z", "created_at": "2024-01-02T10:30:00Z"}
  ],
  "termine": [
    {"id": 4, "user_id": 9, "name": "Max Muster", "email": "max@example.com", "datum": "2024-02-01", "uhrzeit": "09:30", "termin_zeit": "2024-02-01T09:30:00Z", "created_at": "2024-01-03T10:00:00Z"}
  ]
}`

func TestDecodeDocument_UpgradesLegacyLayout(t *testing.T) {
	doc, err := decodeDocument([]byte(legacyDocumentJSON))
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, doc.SchemaVersion)
	require.Len(t, doc.Users, 1)
	assert.Equal(t, "ada@example.com", doc.Users[0].Email)
	assert.Equal(t, "admin", doc.Users[0].Role)

	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "in_progress", doc.Messages[0].Status)
	assert.Equal(t, "closed", doc.Messages[1].Status)
	assert.Equal(t, "Support", doc.Messages[1].AdminDisplayName)

	require.Len(t, doc.Appointments, 1)
	assert.Equal(t, "2024-02-01", doc.Appointments[0].Date)
	assert.Equal(t, "09:30", doc.Appointments[0].Time)

	assert.Equal(t, counters{Users: 3, Messages: 8, Appointments: 4}, doc.Counters)
}

func TestDecodeDocument_EmptyAndFutureVersions(t *testing.T) {
	doc, err := decodeDocument(nil)
	require.NoError(t, err)
	assert.Empty(t, doc.Messages)

	_, err = decodeDocument([]byte(`{"schema_version": 99}`))
	require.Error(t, err)
}

func TestStore_LegacyFileKeepsWorking(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyDocumentJSON), 0o600))

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)

	chats := NewChatRepository(store)
	messages, err := chats.ListConversation(context.Background(), "chat_abc")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	msg := chat.Message{ConversationID: "chat_new", Body: "hello", State: chat.State{Status: chat.StatusOpen}, CreatedAt: time.Now().UTC()}
	require.NoError(t, appendMessage(chats, &msg))
	assert.Equal(t, int64(9), msg.ID, "counter continues after the highest legacy id")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"schema_version": 2`)
}

func TestStore_PersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "portal.json")
	ctx := context.Background()

	store, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	u := user.User{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: user.RoleApplicant}
	require.NoError(t, NewUserRepository(store).Create(ctx, &u))

	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	got, err := NewUserRepository(reopened).FindByEmail(ctx, "GRACE@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	repo := NewUserRepository(NewMemory(zerolog.Nop()))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &user.User{Email: "dup@example.com"}))
	err := repo.Create(ctx, &user.User{Email: "DUP@example.com"})
	assert.ErrorIs(t, err, user.ErrEmailTaken)

	_, err = repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestAppointmentRepository_ConcurrentCreateSameSlot(t *testing.T) {
	repo := NewAppointmentRepository(NewMemory(zerolog.Nop()))
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			a := appointment.Appointment{UserID: userID, Date: "2025-03-10", Time: "10:00"}
			results <- repo.Create(ctx, &a)
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	var ok, taken int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appointment.ErrSlotTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, taken)
}

func TestAppointmentRepository_CancelFreesSlot(t *testing.T) {
	repo := NewAppointmentRepository(NewMemory(zerolog.Nop()))
	ctx := context.Background()

	first := appointment.Appointment{UserID: 1, Date: "2025-03-10", Time: "10:30"}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Cancel(ctx, first.ID, time.Now()))
	assert.ErrorIs(t, repo.Cancel(ctx, first.ID, time.Now()), appointment.ErrNotFound)

	second := appointment.Appointment{UserID: 2, Date: "2025-03-10", Time: "10:30"}
	require.NoError(t, repo.Create(ctx, &second))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	cancelled, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.Active())
}

func appendMessage(repo *ChatRepository, m *chat.Message) error {
	return repo.AppendTo(context.Background(), m.ConversationID, func([]chat.Message) (*chat.Message, error) {
		return m, nil
	})
}

func TestChatRepository_TransitionRestampsAllRows(t *testing.T) {
	repo := NewChatRepository(NewMemory(zerolog.Nop()))
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		m := chat.Message{ConversationID: "chat_x", Body: "m", State: chat.State{Status: chat.StatusOpen}, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, appendMessage(repo, &m))
	}
	other := chat.Message{ConversationID: "chat_y", Body: "other", State: chat.State{Status: chat.StatusOpen}, CreatedAt: base}
	require.NoError(t, appendMessage(repo, &other))

	var seen int
	err := repo.Transition(ctx, "chat_x", func(existing []chat.Message) (chat.State, error) {
		seen = len(existing)
		return chat.NewState(chat.StatusDone, false, base), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, seen)

	messages, err := repo.ListConversation(ctx, "chat_x")
	require.NoError(t, err)
	for _, m := range messages {
		assert.Equal(t, chat.StatusDone, m.Status)
		require.NotNil(t, m.ClosedAt)
	}

	untouched, err := repo.FindMessage(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.StatusOpen, untouched.Status)
}

func TestChatRepository_CallbackErrorAbortsWrite(t *testing.T) {
	repo := NewChatRepository(NewMemory(zerolog.Nop()))
	ctx := context.Background()
	refused := errors.New("refused")

	seed := chat.Message{ConversationID: "chat_x", Body: "first", State: chat.State{Status: chat.StatusOpen}, CreatedAt: time.Now().UTC()}
	require.NoError(t, appendMessage(repo, &seed))

	err := repo.AppendTo(ctx, "chat_x", func(existing []chat.Message) (*chat.Message, error) {
		require.Len(t, existing, 1)
		return nil, refused
	})
	assert.ErrorIs(t, err, refused)

	err = repo.Transition(ctx, "chat_x", func([]chat.Message) (chat.State, error) {
		return chat.State{}, refused
	})
	assert.ErrorIs(t, err, refused)

	messages, err := repo.ListConversation(ctx, "chat_x")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, chat.StatusOpen, messages[0].Status)
}

func TestUserRepository_UpdateAndDeleteDetachesRecords(t *testing.T) {
	store := NewMemory(zerolog.Nop())
	users := NewUserRepository(store)
	appts := NewAppointmentRepository(store)
	chats := NewChatRepository(store)
	ctx := context.Background()

	admin := &user.User{FirstName: "Ada", Email: "ada@example.com", Role: user.RoleAdmin, CreatedAt: time.Now().UTC()}
	anna := &user.User{FirstName: "Anna", Email: "anna@example.com", Role: user.RoleApplicant, CreatedAt: time.Now().UTC().Add(time.Second)}
	require.NoError(t, users.Create(ctx, admin))
	require.NoError(t, users.Create(ctx, anna))

	anna.Email = "ADA@example.com"
	assert.ErrorIs(t, users.Update(ctx, anna), user.ErrEmailTaken)
	anna.Email, anna.LastName = "anna@example.com", "Berg"
	require.NoError(t, users.Update(ctx, anna))
	assert.ErrorIs(t, users.Update(ctx, &user.User{ID: 99, Email: "x@example.com"}), user.ErrNotFound)

	listed, err := users.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, anna.ID, listed[0].ID)
	assert.Equal(t, "Berg", listed[0].LastName)

	booking := appointment.Appointment{UserID: anna.ID, Date: "2025-03-10", Time: "11:00"}
	require.NoError(t, appts.Create(ctx, &booking))
	question := chat.Message{ConversationID: "chat_a", UserID: &anna.ID, Body: "hi", State: chat.State{Status: chat.StatusOpen}, CreatedAt: time.Now().UTC()}
	require.NoError(t, appendMessage(chats, &question))
	answer := chat.Message{ConversationID: "chat_a", AdminID: &admin.ID, Body: "hello", State: chat.State{Status: chat.StatusOpen}, CreatedAt: time.Now().UTC().Add(time.Second)}
	require.NoError(t, appendMessage(chats, &answer))

	require.NoError(t, users.Delete(ctx, anna.ID))
	assert.ErrorIs(t, users.Delete(ctx, anna.ID), user.ErrNotFound)

	_, err = appts.FindByID(ctx, booking.ID)
	assert.ErrorIs(t, err, appointment.ErrNotFound)

	messages, err := chats.ListConversation(ctx, "chat_a")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Nil(t, messages[0].UserID)
	require.NotNil(t, messages[1].AdminID)
	assert.Equal(t, admin.ID, *messages[1].AdminID)
}
