package user

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"portal-api/internal/domain/identity"
	"portal-api/internal/utils/pii"
	"portal-api/internal/utils/platformerrors"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// RegisterInput carries the registration form.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// ProfileInput carries the editable account fields.
type ProfileInput struct {
	FirstName string
	LastName  string
	Email     string
}

// AccountInput is an administrator's edit of another account.
type AccountInput struct {
	ProfileInput
	Role string
}

// Service describes account operations.
type Service interface {
	Register(ctx context.Context, in RegisterInput) (User, error)
	Authenticate(ctx context.Context, email, password string) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	CreateAdmin(ctx context.Context, in RegisterInput) (User, error)
	EnsureAdmin(ctx context.Context, email, password string) error
	UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error)

	List(ctx context.Context) ([]User, error)
	AdminCreate(ctx context.Context, in RegisterInput, role string) (User, error)
	AdminUpdate(ctx context.Context, actorID, id int64, in AccountInput) (User, error)
	AdminDelete(ctx context.Context, actorID, id int64) error
}

type service struct {
	repo      Repository
	sanitizer *pii.Sanitizer
	log       zerolog.Logger
	now       func() time.Time
	cost      int
}

// NewService wires the user service with its repository.
func NewService(repo Repository, sanitizer *pii.Sanitizer, log zerolog.Logger) Service {
	return &service{
		repo:      repo,
		sanitizer: sanitizer,
		log:       log.With().Str("component", "user-service").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		cost:      bcrypt.DefaultCost,
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (User, error) {
	return s.create(ctx, in, RoleApplicant)
}

func (s *service) CreateAdmin(ctx context.Context, in RegisterInput) (User, error) {
	return s.create(ctx, in, RoleAdmin)
}

func (s *service) create(ctx context.Context, in RegisterInput, role Role) (User, error) {
	u := User{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     identity.NormalizeEmail(in.Email),
		Role:      role,
		CreatedAt: s.now(),
	}
	if u.FirstName == "" || u.LastName == "" || u.Email == "" || in.Password == "" {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "all fields are required")
	}
	if !identity.ValidEmail(u.Email) {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid email address")
	}
	if len(in.Password) < MinPasswordLength {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "password must be at least 6 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal, "failed to register user", err)
	}
	u.PasswordHash = string(hash)

	if err := s.repo.Create(ctx, &u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return User{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "email already registered", err)
		}
		return User{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to register user")
	}

	s.log.Info().Int64("user_id", u.ID).Str("email", s.sanitizer.Email(u.Email)).Str("role", string(u.Role)).Msg("user registered")
	return u, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "email and password are required")
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid email or password", nil)
		}
		return User{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to log in")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.log.Debug().Str("email", s.sanitizer.Email(email)).Msg("password mismatch")
		return User{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "invalid email or password", nil)
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "user not found", err)
		}
		return User{}, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load user")
	}
	return u, nil
}

// EnsureAdmin creates the bootstrap administrator if the email is unused.
// An existing account with that email is left untouched.
func (s *service) EnsureAdmin(ctx context.Context, email, password string) error {
	email = identity.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to look up admin")
	}

	_, err = s.CreateAdmin(ctx, RegisterInput{
		FirstName: "Portal",
		LastName:  "Admin",
		Email:     email,
		Password:  password,
	})
	if platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict) {
		return nil
	}
	return err
}

func (s *service) UpdateProfile(ctx context.Context, id int64, in ProfileInput) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := applyProfile(ctx, &u, in); err != nil {
		return User{}, err
	}
	if err := s.save(ctx, &u, "failed to update profile"); err != nil {
		return User{}, err
	}
	s.log.Info().Int64("user_id", u.ID).Msg("profile updated")
	return u, nil
}

func (s *service) List(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to load users")
	}
	return users, nil
}

// AdminCreate registers an account on an administrator's behalf. An empty
// role means applicant.
func (s *service) AdminCreate(ctx context.Context, in RegisterInput, role string) (User, error) {
	r := RoleApplicant
	if strings.TrimSpace(role) != "" {
		parsed, ok := ParseRole(role)
		if !ok {
			return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid role")
		}
		r = parsed
	}
	return s.create(ctx, in, r)
}

// AdminUpdate edits another account. Administrators cannot demote themselves.
func (s *service) AdminUpdate(ctx context.Context, actorID, id int64, in AccountInput) (User, error) {
	role, ok := ParseRole(in.Role)
	if !ok {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid role")
	}
	if actorID == id && role != RoleAdmin {
		return User{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "administrators cannot remove their own admin role")
	}

	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := applyProfile(ctx, &u, in.ProfileInput); err != nil {
		return User{}, err
	}
	u.Role = role
	if err := s.save(ctx, &u, "failed to update user"); err != nil {
		return User{}, err
	}
	s.log.Info().Int64("user_id", u.ID).Int64("admin_id", actorID).Str("role", string(u.Role)).Msg("user updated by admin")
	return u, nil
}

// AdminDelete removes an account and its appointments.
func (s *service) AdminDelete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "administrators cannot delete themselves")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "user not found", err)
		}
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete user")
	}
	s.log.Info().Int64("user_id", id).Int64("admin_id", actorID).Msg("user deleted by admin")
	return nil
}

func (s *service) save(ctx context.Context, u *User, failure string) error {
	err := s.repo.Update(ctx, u)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmailTaken):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "email already registered", err)
	case errors.Is(err, ErrNotFound):
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "user not found", err)
	default:
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, failure)
	}
}

func applyProfile(ctx context.Context, u *User, in ProfileInput) error {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	email := identity.NormalizeEmail(in.Email)
	if first == "" || last == "" || email == "" {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "first name, last name and email are required")
	}
	if !identity.ValidEmail(email) {
		return platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid email address")
	}
	u.FirstName, u.LastName, u.Email = first, last, email
	return nil
}
