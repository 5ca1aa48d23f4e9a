package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"portal-api/internal/config"
	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/notification"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/auth"
	"portal-api/internal/infrastructure/logger"
	"portal-api/internal/infrastructure/notifier"
	"portal-api/internal/infrastructure/observability"
	"portal-api/internal/infrastructure/storage"
	"portal-api/internal/interfaces/httpserver"
	"portal-api/internal/interfaces/httpserver/handlers"
	"portal-api/internal/interfaces/httpserver/routes"
)

// @title Portal API
// @version 1.0
// @description Applicant portal: accounts, appointment booking and live chat.
// @BasePath /
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HttpServer
	storage    *storage.Manager
	users      user.Service
	dispatcher notification.Dispatcher
	log        zerolog.Logger
}

func NewApplication(
	cfg *config.Config,
	httpServer *httpserver.HttpServer,
	storageManager *storage.Manager,
	users user.Service,
	dispatcher notification.Dispatcher,
	log zerolog.Logger,
) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		storage:    storageManager,
		users:      users,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Start serves HTTP until ctx is cancelled. Storage is opened in the
// background so a slow or missing database does not delay the listener.
func (a *Application) Start(ctx context.Context) error {
	var eg errgroup.Group

	eg.Go(func() error {
		return a.httpServer.Run(ctx)
	})

	eg.Go(func() error {
		a.warmUp(ctx)
		return nil
	})

	err := eg.Wait()

	if d, ok := a.dispatcher.(*notifier.Dispatcher); ok {
		waitCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if werr := d.Shutdown(waitCtx); werr != nil {
			a.log.Warn().Err(werr).Msg("pending notifications abandoned")
		}
	}
	return err
}

func (a *Application) warmUp(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := a.storage.Ready(ctx); err != nil {
		a.log.Error().Err(err).Msg("storage not ready at startup, will retry on demand")
		return
	}
	if err := a.users.EnsureAdmin(ctx, a.cfg.AdminEmail, a.cfg.AdminPassword); err != nil {
		a.log.Error().Err(err).Msg("ensure admin account")
	}
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	redisClient, closeRedis, err := newRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer closeRedis()

	sessions, err := newSessionStore(cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize session store")
	}

	location, err := newLocation(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load appointment timezone")
	}

	storageManager, closeStorage := newStorageManager(cfg, log)
	defer closeStorage()

	sanitizer := newSanitizer(cfg)
	dispatcher := newDispatcher(cfg, sanitizer, log)

	userService := user.NewService(storageManager.Users(), sanitizer, log)
	chatService := chat.NewService(storageManager.Chats(), dispatcher, sanitizer, log)
	appointmentService := appointment.NewService(storageManager.Appointments(), newSlotLocker(redisClient, log), dispatcher, sanitizer, location, log)

	resolver := auth.NewResolver(sessions, newTokens(cfg), log)
	identity := newIdentity(cfg, resolver, log)
	loginLimiter, err := newLoginLimiter(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize login rate limiter")
	}

	handlerProvider := handlers.NewProvider(userService, chatService, appointmentService, identity, log)
	routeProvider := routes.NewProvider(handlerProvider, identity, loginLimiter, userService, log)
	httpServer := httpserver.New(cfg, log, routeProvider, storageManager)

	app := NewApplication(cfg, httpServer, storageManager, userService, dispatcher, log)
	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
