package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-api/internal/domain/user"
	"portal-api/internal/interfaces/httpserver/middlewares"
	"portal-api/internal/utils/platformerrors"
)

// CreateUserRequest is an administrator-created account.
type CreateUserRequest struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
	Email     string `json:"email" example:"ada@example.com"`
	Password  string `json:"password" example:"secret123"`
	Role      string `json:"role,omitempty" example:"applicant" enums:"applicant,admin"`
}

// UpdateUserRequest replaces an account's name, email and role.
type UpdateUserRequest struct {
	FirstName string `json:"first_name" example:"Ada"`
	LastName  string `json:"last_name" example:"Lovelace"`
	Email     string `json:"email" example:"ada@example.com"`
	Role      string `json:"role" example:"admin" enums:"applicant,admin"`
}

// UsersResponse lists accounts.
type UsersResponse struct {
	Success bool        `json:"success" example:"true"`
	Users   []user.User `json:"users"`
}

// ListUsers godoc
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Success      200  {object}  UsersResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /api/admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	if users == nil {
		users = []user.User{}
	}
	c.JSON(http.StatusOK, UsersResponse{Success: true, Users: users})
}

// CreateUser godoc
// @Summary      Create an account
// @Description  Role defaults to applicant.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        body  body      CreateUserRequest  true  "Account"
// @Success      200   {object}  UserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/admin/users [post]
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.users.AdminCreate(c.Request.Context(), user.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, req.Role)
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, UserResponse{Success: true, User: u})
}

// UpdateUser godoc
// @Summary      Edit an account
// @Description  Administrators cannot remove their own admin role.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id    path      int                true  "User id"
// @Param        body  body      UpdateUserRequest  true  "Account"
// @Success      200   {object}  UserResponse
// @Failure      400   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Router       /api/admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid user id")
	if !ok {
		return
	}
	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	admin, _ := middlewares.CurrentUser(c)

	u, err := h.users.AdminUpdate(c.Request.Context(), admin.ID, id, user.AccountInput{
		ProfileInput: user.ProfileInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
		},
		Role: req.Role,
	})
	if err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, UserResponse{Success: true, User: u})
}

// DeleteUser godoc
// @Summary      Delete an account
// @Description  Removes the account and its appointments. Chat history is kept.
// @Tags         admin
// @Produce      json
// @Param        id   path      int  true  "User id"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /api/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := pathID(c, "id", "invalid user id")
	if !ok {
		return
	}
	admin, _ := middlewares.CurrentUser(c)

	if err := h.users.AdminDelete(c.Request.Context(), admin.ID, id); err != nil {
		platformerrors.WriteError(c, err, h.log)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "user deleted"})
}
