package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/dto"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// AuthHandler exposes registration, login, logout and role resolution.
type AuthHandler struct {
	users    *service.UserService
	sessions *auth.SessionManager
	cfg      config.AuthConfig
}

// NewAuthHandler constructs handler.
func NewAuthHandler(users *service.UserService, sessions *auth.SessionManager, cfg config.AuthConfig) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, cfg: cfg}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	if _, err := h.users.Register(c.UserContext(), req.Name, req.Email, req.Password, req.Role); err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "User registered successfully"})
}

// Login handles POST /api/login. On success a signed session cookie is
// set; its lifetime matches the server-side session record.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" || req.Password == "" {
		return errorutil.NewValidationError("name and password required", nil)
	}

	identity, err := h.users.Authenticate(c.UserContext(), req.Name, req.Password)
	if err != nil {
		return err
	}

	token, expiresAt, err := h.sessions.Issue(c.UserContext(), *identity)
	if err != nil {
		return errorutil.NewStoreError(err)
	}
	h.setSessionCookie(c, token, expiresAt)

	return c.JSON(fiber.Map{
		"message": "Login successful",
		"user": fiber.Map{
			"id":   identity.UserID,
			"name": identity.Name,
			"role": identity.Role,
		},
	})
}

// Logout handles GET /logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	if err := h.sessions.Revoke(c.UserContext(), principal.Session.ID); err != nil {
		return errorutil.NewStoreError(err)
	}
	h.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "User logged out"})
}

// RoleCheck handles GET /api/role_check. The result is tri-state: logged
// in with a role, session names a missing account, or no session at all.
func (h *AuthHandler) RoleCheck(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return c.JSON(fiber.Map{"message": "User not logged in"})
	}

	identity := principal.Session.Identity()
	resolution, err := h.users.ResolveRole(c.UserContext(), &identity)
	if err != nil {
		return err
	}
	switch resolution.State {
	case service.RoleStateLoggedIn:
		return c.JSON(fiber.Map{"message": "User logged in", "role": resolution.Role})
	case service.RoleStateNotFound:
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "User not found"})
	default:
		return c.JSON(fiber.Map{"message": "User not logged in"})
	}
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    token,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}
