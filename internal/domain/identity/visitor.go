package identity

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"portal-api/internal/utils/platformerrors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Visitor is the self-declared identity of a chat participant.
type Visitor struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

// Normalize trims every field and lower-cases the email.
func (v Visitor) Normalize() Visitor {
	return Visitor{
		FirstName: strings.TrimSpace(v.FirstName),
		LastName:  strings.TrimSpace(v.LastName),
		Email:     NormalizeEmail(v.Email),
	}
}

// IsZero reports whether no field was supplied at all.
func (v Visitor) IsZero() bool {
	return strings.TrimSpace(v.FirstName) == "" && strings.TrimSpace(v.LastName) == "" && strings.TrimSpace(v.Email) == ""
}

// ValidateVisitor normalizes v and checks its shape: both names present and an
// RFC-shaped email.
func ValidateVisitor(ctx context.Context, v Visitor) (Visitor, error) {
	normalized := v.Normalize()
	if normalized.FirstName == "" || normalized.LastName == "" || normalized.Email == "" {
		return Visitor{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "first name, last name and email are required")
	}
	if err := validate.Struct(normalized); err != nil {
		return Visitor{}, platformerrors.Validation(ctx, platformerrors.LayerDomain, "invalid email address")
	}
	return normalized, nil
}

// ValidEmail reports whether email is RFC-shaped after normalization.
func ValidEmail(email string) bool {
	email = NormalizeEmail(email)
	return email != "" && validate.Var(email, "email") == nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
