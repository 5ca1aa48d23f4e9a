package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"portal-api/internal/domain/user"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/platformerrors"
)

// RegisterRequest is the registration form.
type RegisterRequest struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
	Email     string `json:"email" example:"ada@example.com"`
	Password  string `json:"password" example:"secret123"`
}

// LoginRequest carries login credentials.
type LoginRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"secret123"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Success bool      `json:"success" example:"true"`
	Message string    `json:"message"`
	User    user.User `json:"user"`
}

// ProfileRequest edits the signed-in account.
type ProfileRequest struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Byron"`
	Email     string `json:"email" example:"ada@example.com"`
}

// UserResponse wraps a single account.
type UserResponse struct {
	Success bool      `json:"success" example:"true"`
	User    user.User `json:"user"`
}

// SessionStatusResponse reports whether the caller is signed in.
type SessionStatusResponse struct {
	IsAuthenticated bool   `json:"is_authenticated"`
	UserID          *int64 `json:"user_id"`
}

// AuthHandler serves account and session endpoints.
type AuthHandler struct {
	users    user.Service
	identity *middlewares.Identity
	log      zerolog.Logger
}

// NewAuthHandler wires dependencies for auth routes.
func NewAuthHandler(users user.Service, identity *middlewares.Identity, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		identity: identity,
		log:      log.With().Str("component", "auth-handler").Logger(),
	}
}

// Register godoc
// @Summary      Register an account
// @Description  Creates an applicant account and logs it in.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      RegisterRequest  true  "Registration form"
// @Success      200   {object}  AuthResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.users.Register(c.Request.Context(), user.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	if !h.signIn(c, u.ID) {
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Success: true, Message: "registration successful", User: u})
}

// Login godoc
// @Summary      Log in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      LoginRequest  true  "Credentials"
// @Success      200   {object}  AuthResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      429   {object}  ErrorResponse
// @Router       /api/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	if !h.signIn(c, u.ID) {
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Success: true, Message: "login successful", User: u})
}

// Logout godoc
// @Summary      Log out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  SuccessResponse
// @Router       /api/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.identity.SignOut(c); err != nil {
		platformerrors.WriteError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeInternal, "failed to log out", err), h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "logged out"})
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  user.User
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/user [get]
func (h *AuthHandler) Me(c *gin.Context) {
	p := middlewares.PrincipalFromContext(c)
	u, err := h.users.Get(c.Request.Context(), *p.UserID)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, u)
}

// UpdateProfile godoc
// @Summary      Update own profile
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      ProfileRequest  true  "Profile"
// @Success      200   {object}  UserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/user [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	p := middlewares.PrincipalFromContext(c)
	u, err := h.users.UpdateProfile(c.Request.Context(), *p.UserID, user.ProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, UserResponse{Success: true, User: u})
}

// CheckSession godoc
// @Summary      Session status
// @Tags         auth
// @Produce      json
// @Success      200  {object}  SessionStatusResponse
// @Router       /api/check-session [get]
func (h *AuthHandler) CheckSession(c *gin.Context) {
	p := middlewares.PrincipalFromContext(c)
	c.JSON(http.StatusOK, SessionStatusResponse{IsAuthenticated: p.Authenticated(), UserID: p.UserID})
}

func (h *AuthHandler) signIn(c *gin.Context, userID int64) bool {
	if err := h.identity.SignIn(c, userID); err != nil {
		platformerrors.WriteError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler, platformerrors.ErrorTypeInternal, "session could not be saved", err), h.log)
		return false
	}
	return true
}
