package user

import (
	"strings"
	"time"
)

// Role distinguishes applicants from portal administrators.
type Role string

const (
	RoleApplicant Role = "applicant"
	RoleAdmin     Role = "admin"
)

// User is a registered portal account.
type User struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin reports whether the user may use the admin API.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DisplayName is "first last" when either part is set, otherwise the email.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Email
}

// ParseRole accepts "applicant" or "admin" in any case.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleApplicant:
		return RoleApplicant, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}
