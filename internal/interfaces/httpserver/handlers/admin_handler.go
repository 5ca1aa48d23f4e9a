package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/metrics"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/platformerrors"
)

// StatusRequest sets a conversation status.
type StatusRequest struct {
	Status string `json:"status" example:"in_progress" enums:"open,in_progress,done,closed"`
}

// ReplyRequest is an administrator reply.
type ReplyRequest struct {
	Message     string `json:"message" example:"Thanks, we will get back to you shortly."`
	DisplayName string `json:"display_name,omitempty" example:"Support"`
}

// EditMessageRequest replaces a message body.
type EditMessageRequest struct {
	Message string `json:"message"`
}

// ConversationResponse wraps a conversation summary.
type ConversationResponse struct {
	Success      bool              `json:"success" example:"true"`
	Conversation chat.Conversation `json:"conversation"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Success bool         `json:"success" example:"true"`
	Message chat.Message `json:"message"`
}

// AdminHandler serves the administrator API.
type AdminHandler struct {
	users        user.Service
	appointments appointment.Service
	chats        chat.Service
	log          zerolog.Logger
}

// NewAdminHandler wires dependencies for admin routes.
func NewAdminHandler(users user.Service, appointments appointment.Service, chats chat.Service, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		users:        users,
		appointments: appointments,
		chats:        chats,
		log:          log.With().Str("component", "admin-handler").Logger(),
	}
}

// ListAppointments godoc
// @Summary      List all active appointments
// @Tags         admin
// @Produce      json
// @Success      200  {object}  AppointmentsResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /api/admin/termine [get]
func (h *AdminHandler) ListAppointments(c *gin.Context) {
	appts, err := h.appointments.ListAll(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, AppointmentsResponse{Success: true, Appointments: appts})
}

// CancelAppointment godoc
// @Summary      Cancel any appointment
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "Appointment id"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/admin/termine/{id} [delete]
func (h *AdminHandler) CancelAppointment(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid appointment id")
	if !ok {
		return
	}
	err := h.appointments.CancelAny(c.Request.Context(), id)
	metrics.RecordAppointment("admin_cancel", outcome(err))
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// ListChats godoc
// @Summary      List conversations
// @Description  Deleted conversations are excluded.
// @Tags         admin
// @Produce      json
// @Success      200  {object}  ConversationsResponse
// @Router       /api/admin/chats [get]
func (h *AdminHandler) ListChats(c *gin.Context) {
	conversations, err := h.chats.ListAll(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, ConversationsResponse{Success: true, Conversations: conversations})
}

// ChatMessages godoc
// @Summary      Fetch a conversation
// @Tags         admin
// @Produce      json
// @Param        conversationId  path      string  true  "Conversation id"
// @Success      200             {object}  MessagesResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /api/admin/chats/{conversationId}/messages [get]
func (h *AdminHandler) ChatMessages(c *gin.Context) {
	messages, meta, err := h.chats.Messages(c.Request.Context(), c.Param("conversationId"))
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

// SetChatStatus godoc
// @Summary      Change a conversation's status
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        conversationId  path      string         true  "Conversation id"
// @Param        body            body      StatusRequest  true  "Status"
// @Success      200             {object}  ConversationResponse
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /api/admin/chats/{conversationId}/status [patch]
func (h *AdminHandler) SetChatStatus(c *gin.Context) {
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	meta, err := h.chats.SetStatus(c.Request.Context(), c.Param("conversationId"), req.Status)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, ConversationResponse{Success: true, Conversation: meta})
}

// DeleteChat godoc
// @Summary      Soft-delete a conversation
// @Tags         admin
// @Produce      json
// @Param        conversationId  path      string  true  "Conversation id"
// @Success      200             {object}  SuccessResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /api/admin/chats/{conversationId} [delete]
func (h *AdminHandler) DeleteChat(c *gin.Context) {
	if err := h.chats.Delete(c.Request.Context(), c.Param("conversationId")); err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// Reply godoc
// @Summary      Reply to a conversation
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        conversationId  path      string        true  "Conversation id"
// @Param        body            body      ReplyRequest  true  "Reply"
// @Success      200             {object}  MessageResponse
// @Failure      400             {object}  ErrorResponse
// @Failure      404             {object}  ErrorResponse
// @Router       /api/admin/chats/{conversationId}/reply [post]
func (h *AdminHandler) Reply(c *gin.Context) {
	var req ReplyRequest
	if !bindJSON(c, &req) {
		return
	}
	admin, _ := middlewares.CurrentUser(c)

	msg, err := h.chats.Reply(c.Request.Context(), chat.ReplyInput{
		ConversationID: c.Param("conversationId"),
		Body:           req.Message,
		Admin:          admin,
		DisplayName:    req.DisplayName,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	metrics.RecordChatMessage(true)
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msg})
}

// EditMessage godoc
// @Summary      Edit a message
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      int                 true  "Message id"
// @Param        body  body      EditMessageRequest  true  "New text"
// @Success      200   {object}  MessageResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /api/admin/chats/messages/{id} [put]
func (h *AdminHandler) EditMessage(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid message id")
	if !ok {
		return
	}
	var req EditMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.chats.EditMessage(c.Request.Context(), id, req.Message)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: msg})
}
