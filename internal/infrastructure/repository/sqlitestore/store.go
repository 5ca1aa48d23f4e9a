package sqlitestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	first_name    TEXT    NOT NULL,
	last_name     TEXT    NOT NULL,
	email         TEXT    NOT NULL,
	password_hash TEXT    NOT NULL,
	role          TEXT    NOT NULL DEFAULT 'applicant',
	created_at    INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users (email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS chat_messages (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id    TEXT    NOT NULL,
	user_id            INTEGER NULL,
	admin_id           INTEGER NULL,
	admin_display_name TEXT    NOT NULL DEFAULT '',
	visitor_first_name TEXT    NOT NULL DEFAULT '',
	visitor_last_name  TEXT    NOT NULL DEFAULT '',
	visitor_email      TEXT    NOT NULL DEFAULT '',
	body               TEXT    NOT NULL,
	status             TEXT    NOT NULL DEFAULT 'open',
	deleted            INTEGER NOT NULL DEFAULT 0,
	closed_at          INTEGER NULL,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NULL
);
CREATE INDEX IF NOT EXISTS ix_chat_messages_conversation ON chat_messages (conversation_id, created_at, id);
CREATE INDEX IF NOT EXISTS ix_chat_messages_user ON chat_messages (user_id);
CREATE INDEX IF NOT EXISTS ix_chat_messages_visitor_email ON chat_messages (visitor_email COLLATE NOCASE);

CREATE TABLE IF NOT EXISTS appointments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id      INTEGER NOT NULL,
	name         TEXT    NOT NULL,
	email        TEXT    NOT NULL,
	slot_date    TEXT    NOT NULL,
	slot_time    TEXT    NOT NULL,
	starts_at    INTEGER NOT NULL,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NULL,
	cancelled_at INTEGER NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_appointments_active_slot ON appointments (slot_date, slot_time) WHERE cancelled_at IS NULL;
CREATE INDEX IF NOT EXISTS ix_appointments_user ON appointments (user_id);
`

// Store is a pooled SQLite database holding the portal tables.
type Store struct {
	pool *sqlitex.Pool
	path string
	log  zerolog.Logger
}

// Open creates the database file and schema if needed.
func Open(ctx context.Context, path string, poolSize int, log zerolog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sqlite dir: %w", err)
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	s := &Store{pool: pool, path: path, log: log.With().Str("component", "sqlite-store").Logger()}
	if err := s.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, err
	}
	s.log.Info().Str("path", path).Int("pool_size", poolSize).Msg("sqlite store opened")
	return s, nil
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close blocks until every borrowed connection is returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("close sqlite %s: %w", s.path, err)
	}
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// withConn borrows a connection for fn.
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withImmediate runs fn in an IMMEDIATE transaction. Concurrent writers
// queue on busy_timeout.
func (s *Store) withImmediate(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer endTransaction(&err)
		return fn(conn)
	})
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	code := sqlite.ErrCode(err)
	return code == sqlite.ResultConstraintUnique || code == sqlite.ResultConstraintPrimaryKey
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixNano()
}

func columnTime(stmt *sqlite.Stmt, col int) time.Time {
	return time.Unix(0, stmt.ColumnInt64(col)).UTC()
}

func columnNullTime(stmt *sqlite.Stmt, col int) *time.Time {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	t := columnTime(stmt, col)
	return &t
}

func columnNullInt(stmt *sqlite.Stmt, col int) *int64 {
	if stmt.ColumnIsNull(col) {
		return nil
	}
	v := stmt.ColumnInt64(col)
	return &v
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
