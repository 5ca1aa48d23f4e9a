package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"portal-api/internal/config"
	"portal-api/internal/domain/appointment"
	"portal-api/internal/domain/chat"
	"portal-api/internal/domain/user"
	"portal-api/internal/infrastructure/database"
	"portal-api/internal/infrastructure/database/repository/appointmentrepo"
	"portal-api/internal/infrastructure/database/repository/chatrepo"
	"portal-api/internal/infrastructure/database/repository/userrepo"
	"portal-api/internal/infrastructure/repository/filestore"
	"portal-api/internal/infrastructure/repository/sqlitestore"
)

// Backend bundles the repositories of one storage engine.
type Backend struct {
	Name         string
	Users        user.Repository
	Chats        chat.Repository
	Appointments appointment.Repository
	closer       func() error
}

// Close releases the engine's resources.
func (b *Backend) Close() error {
	if b == nil || b.closer == nil {
		return nil
	}
	return b.closer()
}

// Open connects the backend selected by STORAGE_BACKEND.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendFile:
		store, err := filestore.Open(cfg.StorageFilePath, log)
		if err != nil {
			return nil, err
		}
		return fileBackend(config.BackendFile, store), nil

	case config.BackendMemory:
		return fileBackend(config.BackendMemory, filestore.NewMemory(log)), nil

	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath, cfg.SQLitePoolSize, log)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:         config.BackendSQLite,
			Users:        sqlitestore.NewUserRepository(store),
			Chats:        sqlitestore.NewChatRepository(store),
			Appointments: sqlitestore.NewAppointmentRepository(store),
			closer:       store.Close,
		}, nil

	case config.BackendPostgres:
		db, err := database.Connect(ctx, postgresConfig(cfg), log)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db, log); err != nil {
			_ = database.Close(db)
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		return &Backend{
			Name:         config.BackendPostgres,
			Users:        userrepo.NewUserGormRepository(db),
			Chats:        chatrepo.NewChatGormRepository(db),
			Appointments: appointmentrepo.NewAppointmentGormRepository(db),
			closer:       func() error { return database.Close(db) },
		}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// Migrate brings the configured backend's schema up to date without serving.
func Migrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.StorageBackend {
	case config.BackendFile:
		store, err := filestore.Open(cfg.StorageFilePath, log)
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Normalize(ctx)
	case config.BackendMemory:
		return nil
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.SQLitePath, cfg.SQLitePoolSize, log)
		if err != nil {
			return err
		}
		return store.Close()
	case config.BackendPostgres:
		db, err := database.Connect(ctx, postgresConfig(cfg), log)
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.Migrate(ctx, db, log)
	}
	return fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// ForceVersion clears a dirty migration state. Only postgres tracks versions.
func ForceVersion(ctx context.Context, cfg *config.Config, version int, log zerolog.Logger) error {
	if cfg.StorageBackend != config.BackendPostgres {
		return fmt.Errorf("force version is not supported for storage backend %q", cfg.StorageBackend)
	}
	db, err := database.Connect(ctx, postgresConfig(cfg), log)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return database.ForceVersion(ctx, db, version)
}

func fileBackend(name string, store *filestore.Store) *Backend {
	return &Backend{
		Name:         name,
		Users:        filestore.NewUserRepository(store),
		Chats:        filestore.NewChatRepository(store),
		Appointments: filestore.NewAppointmentRepository(store),
		closer:       store.Close,
	}
}

func postgresConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		ApplicationName: cfg.ServiceName,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}
