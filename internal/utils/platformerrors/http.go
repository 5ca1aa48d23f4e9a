package platformerrors

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const genericInternalMessage = "internal server error"

// HTTPErrorResponse is the body of every failed API call.
type HTTPErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteHTTPError writes a PlatformError as an HTTP response. Only the message
// is sent; the wrapped cause stays in the logs.
func WriteHTTPError(c *gin.Context, err *PlatformError, log zerolog.Logger) {
	if err == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPErrorResponse{Error: genericInternalMessage})
		return
	}

	LogError(log, err)

	message := err.Message
	if message == "" {
		message = genericInternalMessage
	}
	c.AbortWithStatusJSON(ErrorTypeToHTTPStatus(err.Type), HTTPErrorResponse{
		Error:     message,
		Code:      err.UUID,
		RequestID: err.RequestID,
	})
}

// WriteError writes any error as an HTTP response. Errors that are not
// platform errors are treated as internal.
func WriteError(c *gin.Context, err error, log zerolog.Logger) {
	var platformErr *PlatformError
	if errors.As(err, &platformErr) {
		WriteHTTPError(c, platformErr, log)
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("unhandled error")
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPErrorResponse{Error: genericInternalMessage})
}

// WriteValidationError writes a 400 Bad Request response.
func WriteValidationError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, HTTPErrorResponse{Error: message})
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, HTTPErrorResponse{Error: message})
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, HTTPErrorResponse{Error: message})
}

// WriteTooManyRequests writes a 429 Too Many Requests response.
func WriteTooManyRequests(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, HTTPErrorResponse{Error: message})
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, HTTPErrorResponse{Error: message})
}
