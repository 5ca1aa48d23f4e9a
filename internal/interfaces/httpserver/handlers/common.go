package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-api/internal/utils/platformerrors"
)

// ErrorResponse documents the error body for swagger.
type ErrorResponse = platformerrors.HTTPErrorResponse

// SuccessResponse is the body of mutations that return nothing else.
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty"`
}

func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large"})
		return false
	}
	platformerrors.WriteValidationError(c, "invalid request body")
	return false
}

func pathID(c *gin.Context, name, message string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		platformerrors.WriteValidationError(c, message)
		return 0, false
	}
	return id, true
}

// outcome labels a domain result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeConflict):
		return "conflict"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation):
		return "invalid"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound):
		return "not_found"
	case platformerrors.IsErrorType(err, platformerrors.ErrorTypeForbidden):
		return "forbidden"
	default:
		return "error"
	}
}
