package handlers

import (
	"github.com/rs/zerolog"

	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
	"portal-api/internal/interfaces/httpserver/middlewares"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Auth        *AuthHandler
	Chat        *ChatHandler
	Appointment *AppointmentHandler
	Admin       *AdminHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(
	users user.Service,
	chats chat.Service,
	appointments appointment.Service,
	identity *middlewares.Identity,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Auth:        NewAuthHandler(users, identity, log),
		Chat:        NewChatHandler(chats, users, identity, log),
		Appointment: NewAppointmentHandler(appointments, log),
		Admin:       NewAdminHandler(users, appointments, chats, log),
	}
}
