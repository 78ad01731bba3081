package dto

import (
	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// RegisterRequest payload for POST /api/register.
type RegisterRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     domain.Role `json:"role"`
}

// LoginRequest payload for POST /api/login.
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// CreateUserRequest payload for the admin creation path.
type CreateUserRequest struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// UpdateRoleRequest payload for PUT /api/update_users/:id.
type UpdateRoleRequest struct {
	Role domain.Role `json:"role"`
}

// DeleteUserRequest payload for POST /api/delete_users.
type DeleteUserRequest struct {
	UserID string `json:"user_id"`
}

// UserResponse is the account shape returned to clients. The credential
// hash is never serialized.
type UserResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// UserStatsResponse mirrors the legacy stats payload keys.
type UserStatsResponse struct {
	Customers int `json:"Customers"`
	Agents    int `json:"Agents"`
	Admins    int `json:"Admins"`
}

// NewUserResponse maps a domain user.
func NewUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}
