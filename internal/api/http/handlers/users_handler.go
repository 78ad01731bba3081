package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/dto"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// UsersHandler exposes the admin user-management endpoints.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// Create POST /api/create_user.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	user, err := h.service.CreateDirect(c.UserContext(), req.Name, req.Email, req.Role)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewUserResponse(user))
}

// UpdateRole PUT /api/update_users/:id.
func (h *UsersHandler) UpdateRole(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	var req dto.UpdateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	identity := principal.Identity()
	user, err := h.service.SetRole(c.UserContext(), &identity, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewUserResponse(user))
}

// Delete POST /api/delete_users.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	var req dto.DeleteUserRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	if err := h.service.Delete(c.UserContext(), req.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User deleted"})
}

// ListAll GET /api/all/users.
func (h *UsersHandler) ListAll(c *fiber.Ctx) error {
	users, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, dto.NewUserResponse(&users[i]))
	}
	// The admin dashboard reads the list from a "users" envelope.
	return c.JSON(fiber.Map{"users": items})
}

// Stats GET /api/users/stats.
func (h *UsersHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.UserStatsResponse{
		Customers: stats.Customers,
		Agents:    stats.Agents,
		Admins:    stats.Admins,
	})
}
