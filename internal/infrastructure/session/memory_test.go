package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/domain/identity"
)

func TestMemoryStore_SaveGetDelete(t *testing.T) {
	store, err := NewMemoryStore(10, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	uid := int64(7)
	saved, err := store.Save(ctx, "sess_1", Record{
		UserID:             &uid,
		ChatConversationID: "chat_abc",
		ChatIdentity:       &identity.Visitor{FirstName: "A", LastName: "B", Email: "a@b.co"},
	})
	require.NoError(t, err)
	assert.False(t, saved.ExpiresAt.IsZero())

	got, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	require.NotNil(t, got.UserID)
	assert.Equal(t, uid, *got.UserID)
	assert.Equal(t, "chat_abc", got.ChatConversationID)

	require.NoError(t, store.Delete(ctx, "sess_1"))
	_, err = store.Get(ctx, "sess_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store, err := NewMemoryStore(10, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	_, err = store.Save(ctx, "sess_1", Record{ChatConversationID: "chat_x"})
	require.NoError(t, err)

	now = now.Add(59 * time.Second)
	_, err = store.Get(ctx, "sess_1")
	require.NoError(t, err)

	now = now.Add(time.Second)
	_, err = store.Get(ctx, "sess_1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_Bounded(t *testing.T) {
	store, err := NewMemoryStore(2, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Save(ctx, id, Record{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.Len())
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
