package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/identity"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/metrics"
	"portal-api/internal/infrastructure/observability"
	"portal-api/internal/infrastructure/session"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/platformerrors"
)

// ChatSessionRequest establishes the visitor identity.
type ChatSessionRequest struct {
	FirstName      string `json:"first_name" example:"Ada"`
	LastName       string `json:"last_name" example:"Lovelace"`
	Email          string `json:"email" example:"ada@example.com"`
	ConversationID string `json:"conversation_id,omitempty" example:"chat_6f1c0e0a9d7b4c52a4d1f3b2e8c7a901"`
}

// ChatSessionResponse echoes the bound conversation and identity.
type ChatSessionResponse struct {
	Success        bool             `json:"success" example:"true"`
	ConversationID string           `json:"conversation_id"`
	Identity       identity.Visitor `json:"identity"`
}

// PostMessageRequest is a visitor message. Identity fields are optional when
// the session already carries one.
type PostMessageRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Message        string `json:"message" example:"Hello, I have a question about my application."`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	Email          string `json:"email,omitempty"`
}

// PostMessageResponse returns the stored message and updated conversation.
type PostMessageResponse struct {
	Success      bool              `json:"success" example:"true"`
	Message      chat.Message      `json:"message"`
	Conversation chat.Conversation `json:"conversation"`
}

// MessagesResponse is a conversation with its messages.
type MessagesResponse struct {
	Success        bool              `json:"success" example:"true"`
	ConversationID string            `json:"conversation_id"`
	Conversation   chat.Conversation `json:"conversation"`
	Messages       []chat.Message    `json:"messages"`
}

// ConversationsResponse lists conversation summaries.
type ConversationsResponse struct {
	Success       bool                `json:"success" example:"true"`
	Conversations []chat.Conversation `json:"conversations"`
}

// ChatHandler serves the visitor side of the live chat.
type ChatHandler struct {
	chats    chat.Service
	users    user.Service
	identity *middlewares.Identity
	log      zerolog.Logger
}

// NewChatHandler wires dependencies for chat routes.
func NewChatHandler(chats chat.Service, users user.Service, identity *middlewares.Identity, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		chats:    chats,
		users:    users,
		identity: identity,
		log:      log.With().Str("component", "chat-handler").Logger(),
	}
}

// StartSession godoc
// @Summary      Start a chat session
// @Description  Validates the visitor identity and binds it and a conversation id to the session.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      ChatSessionRequest  true  "Visitor identity"
// @Success      200   {object}  ChatSessionResponse
// @Failure      400   {object}  ErrorResponse
// @Router       /api/chat/session [post]
func (h *ChatHandler) StartSession(c *gin.Context) {
	var req ChatSessionRequest
	if !bindJSON(c, &req) {
		return
	}

	bound, err := h.chats.StartSession(c.Request.Context(), identity.Visitor{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}, req.ConversationID)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}

	if _, err := h.identity.UpdateSession(c, func(rec *session.Record) {
		rec.ChatConversationID = bound.ConversationID
		visitor := bound.Identity
		rec.ChatIdentity = &visitor
	}); err != nil {
		platformerrors.WriteError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeInternal, "session could not be saved", err), h.log)
		return
	}

	c.JSON(http.StatusOK, ChatSessionResponse{Success: true, ConversationID: bound.ConversationID, Identity: bound.Identity})
}

// Messages godoc
// @Summary      Fetch conversation messages
// @Description  Falls back to the session's conversation when no id is given.
// @Tags         chat
// @Produce      json
// @Param        conversationId  query     string  false  "Conversation id"
// @Success      200             {object}  MessagesResponse
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /api/chat/messages [get]
func (h *ChatHandler) Messages(c *gin.Context) {
	conversationID := h.conversationID(c, c.Query("conversationId"))
	messages, meta, err := h.chats.Messages(c.Request.Context(), conversationID)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, MessagesResponse{
		Success:        true,
		ConversationID: meta.ConversationID,
		Conversation:   meta,
		Messages:       messages,
	})
}

// PostMessage godoc
// @Summary      Send a visitor message
// @Description  Identity is taken from the request, else the session, else the logged-in account.
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        body  body      PostMessageRequest  true  "Message"
// @Success      200   {object}  PostMessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /api/chat/messages [post]
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	p := middlewares.PrincipalFromContext(c)
	conversationID := h.conversationID(c, req.ConversationID)
	visitor := h.resolveVisitor(c, p, identity.Visitor{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email})

	ctx, span := observability.StartSpan(c.Request.Context(), "chat.post_message",
		attribute.String("chat.conversation_id", conversationID),
		attribute.Bool("chat.authenticated", p.Authenticated()),
	)
	defer span.End()

	msg, meta, err := h.chats.PostMessage(ctx, chat.PostInput{
		ConversationID: conversationID,
		Body:           req.Message,
		Visitor:        visitor,
		UserID:         p.UserID,
	})
	if err != nil {
		observability.RecordError(span, err)
		platformerrors.WriteError(c, err, h.log)
		return
	}
	metrics.RecordChatMessage(false)

	if _, err := h.identity.UpdateSession(c, func(rec *session.Record) {
		rec.ChatConversationID = msg.ConversationID
		bound := identity.Visitor{FirstName: msg.VisitorFirstName, LastName: msg.VisitorLastName, Email: msg.VisitorEmail}
		rec.ChatIdentity = &bound
	}); err != nil {
		h.log.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("failed to remember chat session")
	}

	c.JSON(http.StatusOK, PostMessageResponse{Success: true, Message: msg, Conversation: meta})
}

// Conversations godoc
// @Summary      List the caller's conversations
// @Description  Matches by account and by the session's visitor email. Anonymous callers without a chat identity get an empty list.
// @Tags         chat
// @Produce      json
// @Success      200  {object}  ConversationsResponse
// @Router       /api/chat/conversations [get]
func (h *ChatHandler) Conversations(c *gin.Context) {
	p := middlewares.PrincipalFromContext(c)

	email := ""
	if p.Session.ChatIdentity != nil {
		email = p.Session.ChatIdentity.Email
	} else if p.Authenticated() {
		if u, err := h.users.Get(c.Request.Context(), *p.UserID); err == nil {
			email = u.Email
		}
	}

	conversations, err := h.chats.ListForParticipant(c.Request.Context(), p.UserID, email)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, ConversationsResponse{Success: true, Conversations: conversations})
}

// conversationID prefers the explicit id and falls back to the session.
func (h *ChatHandler) conversationID(c *gin.Context, requested string) string {
	if id := chat.NormalizeConversationID(requested); id != "" {
		return id
	}
	return chat.NormalizeConversationID(middlewares.PrincipalFromContext(c).Session.ChatConversationID)
}

// resolveVisitor picks the submitted identity when it is valid, else the
// session identity, else the account profile. When none applies the submitted
// identity is returned as is and the chat service reports what is wrong with it.
func (h *ChatHandler) resolveVisitor(c *gin.Context, p auth.Principal, submitted identity.Visitor) identity.Visitor {
	ctx := c.Request.Context()
	if v, err := identity.ValidateVisitor(ctx, submitted); err == nil {
		return v
	}
	if p.Session.ChatIdentity != nil {
		return *p.Session.ChatIdentity
	}
	if p.Authenticated() {
		u, err := h.users.Get(ctx, *p.UserID)
		if err == nil {
			return identity.Visitor{FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
		}
		h.log.Warn().Err(err).Int64("user_id", *p.UserID).Msg("failed to load profile for chat identity")
	}
	return submitted
}
