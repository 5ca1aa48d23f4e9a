//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"

	"portal-api/internal/config"
	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/logger"
	"portal-api/internal/infrastructure/storage"
	"portal-api/internal/interfaces/httpserver"
	"portal-api/internal/interfaces/httpserver/handlers"
	"portal-api/internal/interfaces/httpserver/routes"
)

var infrastructureSet = wire.NewSet(
	newSanitizer,
	newRedisClient,
	newSessionStore,
	newSlotLocker,
	newStorageManager,
	newUserRepository,
	newChatRepository,
	newAppointmentRepository,
	newLocation,
	newDispatcher,
	wire.Bind(new(httpserver.ReadinessChecker), new(*storage.Manager)),
)

var domainSet = wire.NewSet(
	user.NewService,
	chat.NewService,
	appointment.NewService,
)

var httpSet = wire.NewSet(
	newTokens,
	auth.NewResolver,
	newIdentity,
	newLoginLimiter,
	handlers.NewProvider,
	routes.NewProvider,
	httpserver.New,
)

// BuildApplication assembles the portal service with Wire.
func BuildApplication(ctx context.Context) (*Application, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		infrastructureSet,
		domainSet,
		httpSet,
		NewApplication,
	)
	return nil, nil, nil
}
