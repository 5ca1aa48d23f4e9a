package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"portal-api/internal/domain/user"
	"portal-api/internal/utils/platformerrors"
)

const currentUserContextKey = "current_user"

// RequireAuth rejects anonymous callers with 401.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !PrincipalFromContext(c).Authenticated() {
			platformerrors.WriteUnauthorized(c, "unauthorized")
			return
		}
		c.Next()
	}
}

// RequireAdmin loads the caller's account and rejects anyone who is not an
// administrator: 401 when anonymous or unknown, 403 otherwise.
func RequireAdmin(users user.Service, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFromContext(c)
		if !p.Authenticated() {
			platformerrors.WriteUnauthorized(c, "unauthorized")
			return
		}

		account, err := users.Get(c.Request.Context(), *p.UserID)
		if err != nil {
			if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
				platformerrors.WriteUnauthorized(c, "unauthorized")
				return
			}
			platformerrors.WriteError(c, err, logger)
			return
		}
		if !account.IsAdmin() {
			logger.Warn().Int64("user_id", account.ID).Str("path", c.FullPath()).Msg("admin access denied")
			platformerrors.WriteForbidden(c, "admin permission required")
			return
		}

		c.Set(currentUserContextKey, account)
		c.Next()
	}
}

// CurrentUser returns the account RequireAdmin loaded.
func CurrentUser(c *gin.Context) (user.User, bool) {
	val, ok := c.Get(currentUserContextKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := val.(user.User)
	return u, ok
}
