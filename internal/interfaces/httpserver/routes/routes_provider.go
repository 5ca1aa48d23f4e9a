package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"portal-api/internal/domain/user"
	"portal-api/internal/interfaces/httpserver/handlers"
	"portal-api/internal/interfaces/httpserver/middlewares"
)

// Provider registers the /api route tree.
type Provider struct {
	handlers     *handlers.Provider
	identity     *middlewares.Identity
	loginLimiter *middlewares.LimiterPool
	users        user.Service
	log          zerolog.Logger
}

// NewProvider builds the route registrar.
func NewProvider(
	handlerProvider *handlers.Provider,
	identity *middlewares.Identity,
	loginLimiter *middlewares.LimiterPool,
	users user.Service,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		handlers:     handlerProvider,
		identity:     identity,
		loginLimiter: loginLimiter,
		users:        users,
		log:          log,
	}
}

// Register attaches all routes under /api.
func (r *Provider) Register(engine *gin.Engine) {
	api := engine.Group("/api", r.identity.Middleware())
	requireAuth := middlewares.RequireAuth()

	auth := r.handlers.Auth
	api.POST("/register", auth.Register)
	api.POST("/login", middlewares.RateLimitMiddleware(r.loginLimiter, "too many login attempts, please try again later"), auth.Login)
	api.POST("/logout", auth.Logout)
	api.GET("/user", requireAuth, auth.Me)
	api.PUT("/user", requireAuth, auth.UpdateProfile)
	api.GET("/check-session", auth.CheckSession)

	chat := api.Group("/chat")
	{
		chat.POST("/session", r.handlers.Chat.StartSession)
		chat.GET("/messages", r.handlers.Chat.Messages)
		chat.POST("/messages", r.handlers.Chat.PostMessage)
		chat.GET("/conversations", r.handlers.Chat.Conversations)
	}

	termine := api.Group("/termine", requireAuth)
	{
		termine.GET("", r.handlers.Appointment.List)
		termine.GET("/belegt", r.handlers.Appointment.Booked)
		termine.POST("", r.handlers.Appointment.Book)
		termine.PATCH("/:id", r.handlers.Appointment.Reschedule)
		termine.DELETE("/:id", r.handlers.Appointment.Cancel)
	}

	admin := api.Group("/admin", middlewares.RequireAdmin(r.users, r.log))
	{
		admin.GET("/users", r.handlers.Admin.ListUsers)
		admin.POST("/users", r.handlers.Admin.CreateUser)
		admin.PUT("/users/:id", r.handlers.Admin.UpdateUser)
		admin.DELETE("/users/:id", r.handlers.Admin.DeleteUser)

		admin.GET("/termine", r.handlers.Admin.ListAppointments)
		admin.DELETE("/termine/:id", r.handlers.Admin.CancelAppointment)

		admin.GET("/chats", r.handlers.Admin.ListChats)
		admin.GET("/chats/:conversationId/messages", r.handlers.Admin.ChatMessages)
		admin.PATCH("/chats/:conversationId/status", r.handlers.Admin.SetChatStatus)
		admin.DELETE("/chats/:conversationId", r.handlers.Admin.DeleteChat)
		admin.POST("/chats/:conversationId/reply", r.handlers.Admin.Reply)
		admin.PUT("/chats/messages/:id", r.handlers.Admin.EditMessage)
	}
}
