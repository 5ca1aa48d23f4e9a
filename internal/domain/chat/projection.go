package chat

import (
	"sort"
)

// Less orders messages by (created_at, id).
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMessages sorts messages in place into log order.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return Less(messages[i], messages[j])
	})
}

// Summarize projects the messages of a single conversation. The latest message
// by (created_at, id) decides state and preview; nothing is merged field by
// field. The boolean is false for an empty slice.
func Summarize(messages []Message) (Conversation, bool) {
	if len(messages) == 0 {
		return Conversation{}, false
	}

	latest := messages[0]
	var userID *int64
	for _, m := range messages {
		if Less(latest, m) {
			latest = m
		}
		if userID == nil && m.UserID != nil {
			userID = m.UserID
		}
	}
	if latest.UserID != nil {
		userID = latest.UserID
	}

	return Conversation{
		ConversationID:   latest.ConversationID,
		Status:           latest.Status,
		Deleted:          latest.Deleted,
		ClosedAt:         latest.ClosedAt,
		UserID:           userID,
		VisitorFirstName: latest.VisitorFirstName,
		VisitorLastName:  latest.VisitorLastName,
		VisitorEmail:     latest.VisitorEmail,
		LastMessage:      latest.Body,
		LastMessageAt:    latest.CreatedAt,
		LastFromSupport:  latest.FromSupport(),
		MessageCount:     len(messages),
	}, true
}

// Project groups a message log by conversation, drops deleted conversations
// and returns the summaries newest first.
func Project(messages []Message) []Conversation {
	groups := make(map[string][]Message)
	for _, m := range messages {
		groups[m.ConversationID] = append(groups[m.ConversationID], m)
	}

	conversations := make([]Conversation, 0, len(groups))
	for _, group := range groups {
		summary, ok := Summarize(group)
		if !ok || summary.Deleted {
			continue
		}
		conversations = append(conversations, summary)
	}

	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i], conversations[j]
		if !a.LastMessageAt.Equal(b.LastMessageAt) {
			return a.LastMessageAt.After(b.LastMessageAt)
		}
		return a.ConversationID < b.ConversationID
	})
	return conversations
}
