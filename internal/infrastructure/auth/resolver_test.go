package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/infrastructure/session"
)

func newResolver(t *testing.T) (*Resolver, *session.MemoryStore) {
	t.Helper()
	store, err := session.NewMemoryStore(100, time.Hour)
	require.NoError(t, err)
	return NewResolver(store, NewTokens("secret", time.Hour), zerolog.Nop()), store
}

func TestResolve_Anonymous(t *testing.T) {
	r, _ := newResolver(t)

	p, err := r.Resolve(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, p.Authenticated())
	assert.False(t, p.HasSession)

	p, err = r.Resolve(context.Background(), "sess_unknown", "broken")
	require.NoError(t, err)
	assert.False(t, p.Authenticated())
}

func TestResolve_SessionWins(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()

	sessionUser := int64(5)
	_, err := store.Save(ctx, "sess_a", session.Record{UserID: &sessionUser})
	require.NoError(t, err)
	token, _, err := r.tokens.Issue(9)
	require.NoError(t, err)

	p, err := r.Resolve(ctx, "sess_a", token)
	require.NoError(t, err)
	require.True(t, p.Authenticated())
	assert.Equal(t, int64(5), *p.UserID, "sources are ordered, not merged")
}

func TestResolve_TokenBackfillsSession(t *testing.T) {
	r, store := newResolver(t)
	ctx := context.Background()
	token, _, err := r.tokens.Issue(9)
	require.NoError(t, err)

	p, err := r.Resolve(ctx, "", token)
	require.NoError(t, err)
	require.True(t, p.Authenticated())
	assert.Equal(t, int64(9), *p.UserID)
	require.NotEmpty(t, p.SessionID)

	rec, err := store.Get(ctx, p.SessionID)
	require.NoError(t, err)
	require.NotNil(t, rec.UserID)
	assert.Equal(t, int64(9), *rec.UserID)

	_, err = store.Save(ctx, "sess_chat", session.Record{ChatConversationID: "chat_1"})
	require.NoError(t, err)
	p, err = r.Resolve(ctx, "sess_chat", token)
	require.NoError(t, err)
	assert.Equal(t, "sess_chat", p.SessionID)
	rec, err = store.Get(ctx, "sess_chat")
	require.NoError(t, err)
	assert.Equal(t, "chat_1", rec.ChatConversationID)
	require.NotNil(t, rec.UserID)
}
