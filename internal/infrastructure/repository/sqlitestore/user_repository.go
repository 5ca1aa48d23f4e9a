package sqlitestore

import (
	"context"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	domain "portal-api/internal/domain/user"
)

const userColumns = `id, first_name, last_name, email, password_hash, role, created_at`

// UserRepository stores users in the users table.
type UserRepository struct {
	store *Store
}

// NewUserRepository wraps a store.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`INSERT INTO users (first_name, last_name, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{u.FirstName, u.LastName, u.Email, u.PasswordHash, string(u.Role), u.CreatedAt.UTC().UnixNano()}},
		)
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		if err != nil {
			return err
		}
		u.ID = conn.LastInsertRowID()
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	return r.find(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.find(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)
}

// List returns every account, newest first.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				users = append(users, scanUser(stmt))
				return nil
			},
		})
	})
	return users, err
}

// Update rewrites the name, email and role of an existing account.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	return r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn,
			`UPDATE users SET first_name = ?, last_name = ?, email = ?, role = ? WHERE id = ?`,
			&sqlitex.ExecOptions{Args: []any{u.FirstName, u.LastName, u.Email, string(u.Role), u.ID}},
		)
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		if err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// Delete drops the account and its appointments and clears its id from
// chat messages in one transaction.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.store.withImmediate(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn, `DELETE FROM users WHERE id = ?`, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
			return err
		}
		if conn.Changes() == 0 {
			return domain.ErrNotFound
		}
		statements := []string{
			`DELETE FROM appointments WHERE user_id = ?`,
			`UPDATE chat_messages SET user_id = NULL WHERE user_id = ?`,
			`UPDATE chat_messages SET admin_id = NULL WHERE admin_id = ?`,
		}
		for _, query := range statements {
			if err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{Args: []any{id}}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *UserRepository) find(ctx context.Context, query string, args ...any) (domain.User, error) {
	var (
		found domain.User
		ok    bool
	)
	err := r.store.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = scanUser(stmt)
				ok = true
				return nil
			},
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return found, nil
}

func scanUser(stmt *sqlite.Stmt) domain.User {
	return domain.User{
		ID:           stmt.ColumnInt64(0),
		FirstName:    stmt.ColumnText(1),
		LastName:     stmt.ColumnText(2),
		Email:        stmt.ColumnText(3),
		PasswordHash: stmt.ColumnText(4),
		Role:         domain.Role(stmt.ColumnText(5)),
		CreatedAt:    columnTime(stmt, 6),
	}
}
