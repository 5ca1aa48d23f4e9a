package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-api/internal/utils/platformerrors"
)

func TestValidateVisitor(t *testing.T) {
	tests := []struct {
		name    string
		input   Visitor
		want    Visitor
		wantErr string
	}{
		{
			name:  "normalizes fields",
			input: Visitor{FirstName: "  Ada ", LastName: " Lovelace", Email: " ADA@Example.COM "},
			want:  Visitor{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"},
		},
		{
			name:    "missing last name",
			input:   Visitor{FirstName: "Ada", LastName: "   ", Email: "ada@example.com"},
			wantErr: "first name, last name and email are required",
		},
		{
			name:    "malformed email",
			input:   Visitor{FirstName: "Ada", LastName: "Lovelace", Email: "ada-at-example"},
			wantErr: "invalid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateVisitor(context.Background(), tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("someone@example.org"))
	assert.True(t, ValidEmail(" Someone@Example.org "))
	assert.False(t, ValidEmail(""))
	assert.False(t, ValidEmail("someone@"))
	assert.False(t, ValidEmail("not an email"))
}

func TestVisitorIsZero(t *testing.T) {
	assert.True(t, Visitor{}.IsZero())
	assert.True(t, Visitor{FirstName: "  "}.IsZero())
	assert.False(t, Visitor{Email: "a@b.co"}.IsZero())
}
