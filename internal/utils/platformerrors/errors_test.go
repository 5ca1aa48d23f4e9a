package platformerrors

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorTypeToHTTPStatus(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		want      int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeUnauthorized, http.StatusUnauthorized},
		{ErrorTypeForbidden, http.StatusForbidden},
		{ErrorTypeNotFound, http.StatusNotFound},
		{ErrorTypeConflict, http.StatusConflict},
		{ErrorTypeRateLimited, http.StatusTooManyRequests},
		{ErrorTypeDatabaseError, http.StatusInternalServerError},
		{ErrorTypeInternal, http.StatusInternalServerError},
		{ErrorType("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorTypeToHTTPStatus(tt.errorType))
		})
	}
}

func TestAsError_PreservesType(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	base := NewError(ctx, LayerRepository, ErrorTypeNotFound, "conversation not found", nil)

	wrapped := AsError(ctx, LayerDomain, base, "load conversation")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrorTypeNotFound, wrapped.Type)
	assert.Equal(t, "conversation not found", wrapped.Message)
	assert.Equal(t, "req-1", wrapped.RequestID)
	assert.True(t, IsErrorType(wrapped, ErrorTypeNotFound))
	assert.ErrorIs(t, wrapped, base)
}

func TestAsError_PlainErrorBecomesInternal(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := AsError(context.Background(), LayerDomain, cause, "save message")

	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.ErrorIs(t, wrapped, cause)
	assert.Nil(t, AsError(context.Background(), LayerDomain, nil, "noop"))
}

func TestWriteError_HidesCauses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation message is returned",
			err:        Validation(context.Background(), LayerDomain, "message must not be empty"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `"error":"message must not be empty"`,
		},
		{
			name:       "database error keeps the cause out of the body",
			err:        NewError(context.Background(), LayerRepository, ErrorTypeDatabaseError, "failed to save appointment", errors.New("pq: syntax error at SELECT")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"error":"failed to save appointment"`,
		},
		{
			name:       "plain error is generic",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"error":"internal server error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			WriteError(c, tt.err, zerolog.Nop())

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotContains(t, w.Body.String(), "pq:")
		})
	}
}
