package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"portal-api/internal/config"
	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/notification"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/cache"
	"portal-api/internal/infrastructure/lock"
	"portal-api/internal/infrastructure/notifier"
	"portal-api/internal/infrastructure/session"
	"portal-api/internal/infrastructure/storage"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/pii"
)

func newSanitizer(cfg *config.Config) *pii.Sanitizer {
	return pii.NewSanitizer(pii.ParseLevel(cfg.LogPII), cfg.SessionSecret)
}

// newRedisClient returns nil when REDIS_URL is unset.
func newRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close redis client")
		}
	}, nil
}

func newSessionStore(cfg *config.Config, client redis.UniversalClient) (session.Store, error) {
	if client != nil {
		return session.NewRedisStore(client, cfg.SessionTTL), nil
	}
	store, err := session.NewMemoryStore(cfg.SessionMax, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func newSlotLocker(client redis.UniversalClient, log zerolog.Logger) appointment.SlotLocker {
	if client != nil {
		return lock.NewRedis(client, log)
	}
	return lock.NewLocal()
}

func newStorageManager(cfg *config.Config, log zerolog.Logger) (*storage.Manager, func()) {
	manager := storage.NewManager(cfg.StorageBackend, func(ctx context.Context) (*storage.Backend, error) {
		return storage.Open(ctx, cfg, log)
	}, cfg.StorageRetryCooldown, log)
	return manager, func() {
		if err := manager.Close(); err != nil {
			log.Error().Err(err).Msg("close storage")
		}
	}
}

func newUserRepository(m *storage.Manager) user.Repository { return m.Users() }

func newChatRepository(m *storage.Manager) chat.Repository { return m.Chats() }

func newAppointmentRepository(m *storage.Manager) appointment.Repository { return m.Appointments() }

func newLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

func newDispatcher(cfg *config.Config, sanitizer *pii.Sanitizer, log zerolog.Logger) notification.Dispatcher {
	return notifier.FromConfig(cfg, sanitizer, log)
}

func newTokens(cfg *config.Config) *auth.Tokens {
	return auth.NewTokens(cfg.SessionSecret, cfg.AuthTokenTTL)
}

func newIdentity(cfg *config.Config, resolver *auth.Resolver, log zerolog.Logger) *middlewares.Identity {
	return middlewares.NewIdentity(resolver, middlewares.CookieSettings{
		Secure:     cfg.CookieSecure || cfg.IsProduction(),
		SessionTTL: cfg.SessionTTL,
	}, log)
}

func newLoginLimiter(cfg *config.Config) (*middlewares.LimiterPool, error) {
	return middlewares.NewLimiterPool(cfg.LoginRatePerMinute, cfg.LoginRateBurst, cfg.SessionMax)
}
