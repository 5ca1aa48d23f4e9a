package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

// maintenanceDB is the database the bootstrap connects to when the portal
// database has to be created.
const maintenanceDB = "postgres"

// Config describes the pool behind the postgres storage backend.
type Config struct {
	DSN             string
	ApplicationName string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
	LogLevel        gormlogger.LogLevel
}

// Connect opens the portal pool and pings it. A URL DSN naming a missing
// database gets that database created first. Unique violations surface as
// gorm.ErrDuplicatedKey so repositories can map them to domain errors.
func Connect(ctx context.Context, cfg Config, log zerolog.Logger) (*gorm.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	dsn := withApplicationName(cfg.DSN, cfg.ApplicationName)

	if err := ensureDatabase(ctx, dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         queryLogger(cfg, log),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	tunePool(sqlDB, cfg)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Dur("conn_max_lifetime", cfg.ConnMaxLifetime).
		Msg("postgres pool ready")
	return db, nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// queryLogger routes gorm's slow query and error lines through zerolog.
func queryLogger(cfg Config, log zerolog.Logger) gormlogger.Interface {
	level := cfg.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}
	slow := cfg.SlowQuery
	if slow <= 0 {
		slow = 500 * time.Millisecond
	}
	sink := log.With().Str("component", "gorm").Logger()
	return gormlogger.New(&sink, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

func tunePool(sqlDB *sql.DB, cfg Config) {
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

// withApplicationName tags connections so they show up by name in
// pg_stat_activity. An explicit application_name in the DSN wins.
func withApplicationName(dsn, name string) string {
	if name == "" || strings.Contains(dsn, "application_name") {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return dsn + " application_name=" + name
	}
	q := u.Query()
	q.Set("application_name", name)
	u.RawQuery = q.Encode()
	return u.String()
}

// maintenanceTarget returns the maintenance URL and the portal database name
// for a URL DSN. ok is false for key=value DSNs and for DSNs that already
// point at the maintenance database.
func maintenanceTarget(dsn string) (admin string, dbName string, ok bool) {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "", "", false
	}
	dbName = strings.TrimPrefix(u.Path, "/")
	if dbName == "" || dbName == maintenanceDB {
		return "", "", false
	}
	adminURL := *u
	adminURL.Path = "/" + maintenanceDB
	return adminURL.String(), dbName, true
}

func ensureDatabase(ctx context.Context, dsn string) error {
	admin, dbName, ok := maintenanceTarget(dsn)
	if !ok {
		return nil
	}

	sqlDB, err := sql.Open("postgres", admin)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var exists bool
	err = sqlDB.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if exists {
		return nil
	}

	_, err = sqlDB.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(dbName))
	return err
}
