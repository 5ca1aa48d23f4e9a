package chat

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeConversationID(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"keeps allowed characters", "chat_ABC-123", "chat_ABC-123"},
		{"strips others", " chat<script>/../x ", "chatscriptx"},
		{"empty", "   ", ""},
		{"caps length", strings.Repeat("a", 100), strings.Repeat("a", MaxConversationIDLength)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeConversationID(tt.raw))
		})
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"open", "in_progress", "done", "closed", " DONE "} {
		_, ok := ParseStatus(raw)
		assert.True(t, ok, raw)
	}
	for _, raw := range []string{"", "offen", "deleted", "archived"} {
		_, ok := ParseStatus(raw)
		assert.False(t, ok, raw)
	}
}

func TestNewState_ClosedAtFollowsStatusAndDeleted(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		status     Status
		deleted    bool
		wantClosed bool
	}{
		{StatusOpen, false, false},
		{StatusInProgress, false, false},
		{StatusDone, false, true},
		{StatusClosed, false, true},
		{StatusClosed, true, false},
		{StatusDone, true, false},
	}

	for _, tt := range tests {
		state := NewState(tt.status, tt.deleted, now)
		if tt.wantClosed {
			require.NotNil(t, state.ClosedAt, "%s deleted=%v", tt.status, tt.deleted)
			assert.Equal(t, now, *state.ClosedAt)
		} else {
			assert.Nil(t, state.ClosedAt, "%s deleted=%v", tt.status, tt.deleted)
		}
	}
}

func TestSummarize_LatestMessageWinsRegardlessOfOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	adminID := int64(99)
	messages := make([]Message, 0, 10)
	for i := 0; i < 10; i++ {
		messages = append(messages, Message{
			ID:             int64(i + 1),
			ConversationID: "chat_1",
			Body:           "message " + string(rune('a'+i)),
			State:          State{Status: StatusOpen},
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
	}
	messages[9].AdminID = &adminID
	messages[9].State = State{Status: StatusInProgress}

	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		shuffled := append([]Message(nil), messages...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		summary, ok := Summarize(shuffled)
		require.True(t, ok)
		assert.Equal(t, "message j", summary.LastMessage)
		assert.True(t, summary.LastFromSupport)
		assert.Equal(t, StatusInProgress, summary.Status)
		assert.Equal(t, base.Add(9*time.Minute), summary.LastMessageAt)
		assert.Equal(t, 10, summary.MessageCount)
	}
}

func TestSummarize_TiesBrokenByID(t *testing.T) {
	at := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	messages := []Message{
		{ID: 5, ConversationID: "c", Body: "later row", State: State{Status: StatusDone}, CreatedAt: at},
		{ID: 4, ConversationID: "c", Body: "earlier row", State: State{Status: StatusOpen}, CreatedAt: at},
	}

	summary, ok := Summarize(messages)
	require.True(t, ok)
	assert.Equal(t, "later row", summary.LastMessage)
	assert.Equal(t, StatusDone, summary.Status)

	_, ok = Summarize(nil)
	assert.False(t, ok)
}

func TestProject_ExcludesDeletedAndSortsNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	log := []Message{
		{ID: 1, ConversationID: "old", Body: "a", State: State{Status: StatusOpen}, CreatedAt: base},
		{ID: 2, ConversationID: "new", Body: "b", State: State{Status: StatusOpen}, CreatedAt: base.Add(time.Hour)},
		{ID: 3, ConversationID: "gone", Body: "c", State: State{Status: StatusOpen, Deleted: true}, CreatedAt: base.Add(2 * time.Hour)},
		{ID: 4, ConversationID: "old", Body: "d", State: State{Status: StatusOpen}, CreatedAt: base.Add(30 * time.Minute)},
	}

	conversations := Project(log)
	require.Len(t, conversations, 2)
	assert.Equal(t, "new", conversations[0].ConversationID)
	assert.Equal(t, "old", conversations[1].ConversationID)
	assert.Equal(t, "d", conversations[1].LastMessage)
	assert.Equal(t, 2, conversations[1].MessageCount)
}
