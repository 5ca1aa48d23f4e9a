package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	iofs "github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"portal-api/migrations"
)

// Migrate applies the bundled SQL migrations. A dirty schema is reported,
// not repaired; see ForceVersion.
func Migrate(ctx context.Context, gormDB *gorm.DB, log zerolog.Logger) error {
	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migration directory: %w", err)
	}
	for _, entry := range entries {
		log.Debug().Str("file", entry.Name()).Msg("found migration file")
	}

	return withMigrator(ctx, gormDB, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info().Msg("no migrations have been applied yet")
		case err != nil:
			log.Warn().Err(err).Msg("error getting migration version")
		default:
			log.Info().Uint("version", version).Bool("dirty", dirty).Msg("current migration state")
		}
		if dirty {
			return fmt.Errorf("database is dirty at version %d", version)
		}

		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info().Msg("no new migrations to apply")
				return nil
			}
			return fmt.Errorf("apply migrations: %w", err)
		}
		if finalVersion, _, err := m.Version(); err == nil {
			log.Info().Uint("version", finalVersion).Msg("migrations applied")
		}
		return nil
	})
}

// ForceVersion marks version as applied and clears the dirty flag.
func ForceVersion(ctx context.Context, gormDB *gorm.DB, version int) error {
	return withMigrator(ctx, gormDB, func(m *migrate.Migrate) error {
		return m.Force(version)
	})
}

func withMigrator(ctx context.Context, gormDB *gorm.DB, fn func(*migrate.Migrate) error) (err error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("retrieve sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire dedicated connection: %w", err)
	}

	driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("initialize postgres driver: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration connection: %w", closeErr)
		}
	}()

	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	defer func() {
		if closeErr := source.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close migration source: %w", closeErr)
		}
	}()

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	return fn(m)
}
