package filestore

import (
	"context"
	"sort"
	"strings"

	domain "portal-api/internal/domain/user"
)

// UserRepository stores users in the JSON document.
type UserRepository struct {
	store *Store
}

// NewUserRepository wraps a store.
func NewUserRepository(store *Store) *UserRepository {
	return &UserRepository{store: store}
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	return r.store.update(ctx, func(doc *document) error {
		for _, existing := range doc.Users {
			if strings.EqualFold(existing.Email, u.Email) {
				return domain.ErrEmailTaken
			}
		}
		u.ID = doc.nextUserID()
		doc.Users = append(doc.Users, userToRecord(*u))
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (domain.User, error) {
	return r.find(ctx, func(rec userRecord) bool { return rec.ID == id })
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.find(ctx, func(rec userRecord) bool { return strings.EqualFold(rec.Email, email) })
}

// List returns every account, newest first.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := r.store.view(ctx, func(doc *document) error {
		users = make([]domain.User, 0, len(doc.Users))
		for _, rec := range doc.Users {
			users = append(users, userFromRecord(rec))
		}
		return nil
	})
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})
	return users, err
}

// Update rewrites the name, email and role of an existing account.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	return r.store.update(ctx, func(doc *document) error {
		idx := -1
		for i, rec := range doc.Users {
			switch {
			case rec.ID == u.ID:
				idx = i
			case strings.EqualFold(rec.Email, u.Email):
				return domain.ErrEmailTaken
			}
		}
		if idx < 0 {
			return domain.ErrNotFound
		}
		rec := &doc.Users[idx]
		rec.FirstName, rec.LastName, rec.Email, rec.Role = u.FirstName, u.LastName, u.Email, string(u.Role)
		return nil
	})
}

// Delete drops the account and its appointments and clears its id from
// chat messages.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return r.store.update(ctx, func(doc *document) error {
		users := doc.Users[:0]
		found := false
		for _, rec := range doc.Users {
			if rec.ID == id {
				found = true
				continue
			}
			users = append(users, rec)
		}
		if !found {
			return domain.ErrNotFound
		}
		doc.Users = users

		appts := doc.Appointments[:0]
		for _, rec := range doc.Appointments {
			if rec.UserID != id {
				appts = append(appts, rec)
			}
		}
		doc.Appointments = appts

		for i := range doc.Messages {
			m := &doc.Messages[i]
			if m.UserID != nil && *m.UserID == id {
				m.UserID = nil
			}
			if m.AdminID != nil && *m.AdminID == id {
				m.AdminID = nil
			}
		}
		return nil
	})
}

func (r *UserRepository) find(ctx context.Context, match func(userRecord) bool) (domain.User, error) {
	var found domain.User
	err := r.store.view(ctx, func(doc *document) error {
		for _, rec := range doc.Users {
			if match(rec) {
				found = userFromRecord(rec)
				return nil
			}
		}
		return domain.ErrNotFound
	})
	return found, err
}

func userToRecord(u domain.User) userRecord {
	return userRecord{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
	}
}

func userFromRecord(rec userRecord) domain.User {
	return domain.User{
		ID:           rec.ID,
		FirstName:    rec.FirstName,
		LastName:     rec.LastName,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		Role:         domain.Role(rec.Role),
		CreatedAt:    rec.CreatedAt,
	}
}
