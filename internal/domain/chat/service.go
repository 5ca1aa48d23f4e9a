package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"portal-api/internal/domain/identity"
	"portal-api/internal/domain/notification"
	"portal-api/internal/domain/user"
	"portal-api/internal/utils/idgen"
	"portal-api/internal/utils/pii"
	"portal-api/internal/utils/platformerrors"
)

// Session is the visitor identity bound to a conversation id.
type Session struct {
	ConversationID string           `json:"conversation_id"`
	Identity       identity.Visitor `json:"identity"`
}

// PostInput is a visitor or user message.
type PostInput struct {
	ConversationID string
	Body           string
	Visitor        identity.Visitor
	UserID         *int64
}

// ReplyInput is an administrator reply.
type ReplyInput struct {
	ConversationID string
	Body           string
	Admin          user.User
	DisplayName    string
}

// Service describes the conversation state machine.
type Service interface {
	StartSession(ctx context.Context, visitor identity.Visitor, conversationID string) (Session, error)
	PostMessage(ctx context.Context, in PostInput) (Message, Conversation, error)
	Reply(ctx context.Context, in ReplyInput) (Message, error)
	SetStatus(ctx context.Context, conversationID, status string) (Conversation, error)
	Delete(ctx context.Context, conversationID string) error
	EditMessage(ctx context.Context, messageID int64, body string) (Message, error)
	Messages(ctx context.Context, conversationID string) ([]Message, Conversation, error)
	ListForParticipant(ctx context.Context, userID *int64, email string) ([]Conversation, error)
	ListAll(ctx context.Context) ([]Conversation, error)
}

type service struct {
	repo       Repository
	dispatcher notification.Dispatcher
	sanitizer  *pii.Sanitizer
	log        zerolog.Logger
	now        func() time.Time
}

// NewService wires the chat service with its repository and notifier.
func NewService(repo Repository, dispatcher notification.Dispatcher, sanitizer *pii.Sanitizer, log zerolog.Logger) Service {
	if dispatcher == nil {
		dispatcher = notification.Noop{}
	}
	return &service{
		repo:       repo,
		dispatcher: dispatcher,
		sanitizer:  sanitizer,
		log:        log.With().Str("component", "chat-service").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *service) StartSession(ctx context.Context, visitor identity.Visitor, conversationID string) (Session, error) {
	v, err := identity.ValidateVisitor(ctx, visitor)
	if err != nil {
		return Session{}, err
	}
	id := NormalizeConversationID(conversationID)
	if id == "" {
		id = idgen.ConversationID()
	}
	return Session{ConversationID: id, Identity: v}, nil
}

func (s *service) PostMessage(ctx context.Context, in PostInput) (Message, Conversation, error) {
	conversationID := NormalizeConversationID(in.ConversationID)
	if conversationID == "" {
		return Message{}, Conversation{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "chat session missing, please restart the chat")
	}
	body, err := validateBody(ctx, in.Body)
	if err != nil {
		return Message{}, Conversation{}, err
	}

	visitor, err := identity.ValidateVisitor(ctx, in.Visitor)
	if err != nil {
		return Message{}, Conversation{}, err
	}

	var (
		msg      Message
		existing []Message
		exists   bool
	)
	err = s.repo.AppendTo(ctx, conversationID, func(current []Message) (*Message, error) {
		meta, ok := Summarize(current)
		if ok && meta.Deleted {
			return nil, notFound(ctx, "conversation was deleted")
		}
		if ok && meta.Status.IsClosed() {
			return nil, platformerrors.Validation(ctx, platformerrors.LayerDomain, "conversation is closed, please start a new one")
		}

		state := State{Status: StatusOpen}
		if ok {
			state = State{Status: meta.Status, ClosedAt: meta.ClosedAt}
		}
		existing, exists = current, ok
		msg = Message{
			ConversationID:   conversationID,
			UserID:           in.UserID,
			VisitorFirstName: visitor.FirstName,
			VisitorLastName:  visitor.LastName,
			VisitorEmail:     visitor.Email,
			Body:             body,
			State:            state,
			CreatedAt:        s.now(),
		}
		return &msg, nil
	})
	if err != nil {
		return Message{}, Conversation{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to send message")
	}

	if !exists {
		s.log.Info().
			Str("conversation_id", conversationID).
			Str("email", s.sanitizer.Email(visitor.Email)).
			Msg("conversation started")
		s.dispatcher.Dispatch(ctx, notification.Notification{
			Event:   notification.EventChatStarted,
			Subject: "New live chat started",
			Lines: []string{
				"A new live chat was started.",
				"Conversation ID: " + conversationID,
				fmt.Sprintf("Name: %s %s", visitor.FirstName, visitor.LastName),
				"Email: " + visitor.Email,
				"First message: " + body,
			},
			Fields: map[string]string{
				"conversation_id": conversationID,
				"email":           visitor.Email,
			},
			OccurredAt: msg.CreatedAt,
		})
	}

	updated, _ := Summarize(append(existing, msg))
	return msg, updated, nil
}

func (s *service) Reply(ctx context.Context, in ReplyInput) (Message, error) {
	conversationID := NormalizeConversationID(in.ConversationID)
	if conversationID == "" {
		return Message{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid conversation")
	}
	body, err := validateBody(ctx, in.Body)
	if err != nil {
		return Message{}, err
	}

	displayName := strings.TrimSpace(in.DisplayName)
	if displayName == "" {
		displayName = in.Admin.DisplayName()
	}
	adminID := in.Admin.ID

	var msg Message
	err = s.repo.AppendTo(ctx, conversationID, func(current []Message) (*Message, error) {
		meta, ok := Summarize(current)
		if !ok || meta.Deleted {
			return nil, notFound(ctx, "conversation not found")
		}
		SortMessages(current)
		latest := current[len(current)-1]
		msg = Message{
			ConversationID:   conversationID,
			UserID:           meta.UserID,
			AdminID:          &adminID,
			AdminDisplayName: displayName,
			VisitorFirstName: latest.VisitorFirstName,
			VisitorLastName:  latest.VisitorLastName,
			VisitorEmail:     latest.VisitorEmail,
			Body:             body,
			State:            State{Status: meta.Status, ClosedAt: meta.ClosedAt},
			CreatedAt:        s.now(),
		}
		return &msg, nil
	})
	if err != nil {
		return Message{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to send reply")
	}
	return msg, nil
}

func (s *service) SetStatus(ctx context.Context, conversationID, status string) (Conversation, error) {
	id := NormalizeConversationID(conversationID)
	if id == "" {
		return Conversation{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid conversation")
	}
	target, ok := ParseStatus(status)
	if !ok {
		return Conversation{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid conversation status")
	}

	var updated Conversation
	err := s.transition(ctx, id, "failed to update conversation status", func(current []Message, _ Conversation) State {
		state := NewState(target, false, s.now())
		for i := range current {
			current[i].State = state
		}
		updated, _ = Summarize(current)
		return state
	})
	if err != nil {
		return Conversation{}, err
	}
	s.log.Info().Str("conversation_id", id).Str("status", string(target)).Msg("conversation status changed")
	return updated, nil
}

func (s *service) Delete(ctx context.Context, conversationID string) error {
	id := NormalizeConversationID(conversationID)
	if id == "" {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid conversation")
	}

	err := s.transition(ctx, id, "failed to delete conversation", func(_ []Message, meta Conversation) State {
		return State{Status: meta.Status, Deleted: true}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("conversation_id", id).Msg("conversation deleted")
	return nil
}

func (s *service) EditMessage(ctx context.Context, messageID int64, body string) (Message, error) {
	if messageID <= 0 {
		return Message{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid message id")
	}
	text, err := validateBody(ctx, body)
	if err != nil {
		return Message{}, err
	}

	current, err := s.repo.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return Message{}, notFound(ctx, "chat message not found")
		}
		return Message{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to edit message")
	}
	if _, _, err := s.load(ctx, current.ConversationID, "failed to edit message"); err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return Message{}, notFound(ctx, "chat message not found")
		}
		return Message{}, err
	}

	updated, err := s.repo.UpdateBody(ctx, messageID, text, s.now())
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return Message{}, notFound(ctx, "chat message not found")
		}
		return Message{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to edit message")
	}
	return updated, nil
}

func (s *service) Messages(ctx context.Context, conversationID string) ([]Message, Conversation, error) {
	id := NormalizeConversationID(conversationID)
	if id == "" {
		return nil, Conversation{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "chat session missing, please restart the chat")
	}
	return s.load(ctx, id, "failed to load chat messages")
}

func (s *service) ListForParticipant(ctx context.Context, userID *int64, email string) ([]Conversation, error) {
	email = identity.NormalizeEmail(email)
	if userID == nil && email == "" {
		return []Conversation{}, nil
	}

	matched, err := s.repo.ListParticipant(ctx, userID, email)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load chat history")
	}

	seen := make(map[string]bool)
	var history []Message
	for _, m := range matched {
		if seen[m.ConversationID] {
			continue
		}
		seen[m.ConversationID] = true
		full, err := s.repo.ListConversation(ctx, m.ConversationID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load chat history")
		}
		history = append(history, full...)
	}
	return Project(history), nil
}

func (s *service) ListAll(ctx context.Context) ([]Conversation, error) {
	messages, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load conversations")
	}
	return Project(messages), nil
}

// load returns the ordered log and projection of a live conversation.
// Unknown and deleted conversations are both NOT_FOUND.
func (s *service) load(ctx context.Context, conversationID, failure string) ([]Message, Conversation, error) {
	messages, err := s.repo.ListConversation(ctx, conversationID)
	if err != nil {
		return nil, Conversation{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, failure)
	}
	meta, ok := Summarize(messages)
	if !ok || meta.Deleted {
		return nil, Conversation{}, notFound(ctx, "conversation not found")
	}
	SortMessages(messages)
	return messages, meta, nil
}

// transition restamps a live conversation. Unknown and deleted conversations
// are NOT_FOUND.
func (s *service) transition(ctx context.Context, conversationID, failure string, next func(current []Message, meta Conversation) State) error {
	err := s.repo.Transition(ctx, conversationID, func(current []Message) (State, error) {
		meta, ok := Summarize(current)
		if !ok || meta.Deleted {
			return State{}, notFound(ctx, "conversation not found")
		}
		return next(current, meta), nil
	})
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, failure)
	}
	return nil
}

func validateBody(ctx context.Context, raw string) (string, error) {
	body := strings.TrimSpace(raw)
	if body == "" {
		return "", platformerrors.Validation(ctx, platformerrors.LayerDomain, "message is required")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", platformerrors.Validation(ctx, platformerrors.LayerDomain, fmt.Sprintf("message is too long (max. %d characters)", MaxMessageLength))
	}
	return body, nil
}

func notFound(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, message, nil)
}
