package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// SessionCookie is the cookie carrying the signed session token. It
// replaces the plaintext username cookie of the legacy backend.
const SessionCookie = "helpdesk_session"

const principalKey = "auth_principal"

// Principal represents the authenticated caller. User is nil when the
// session resolved but the account no longer exists, which only the
// optional middleware lets through.
type Principal struct {
	User    *domain.User
	Session *Session
}

// Identity returns the caller identity stamped onto writes.
func (p *Principal) Identity() domain.Identity {
	if p.User != nil {
		return domain.Identity{UserID: p.User.ID, Name: p.User.Name, Role: p.User.Role}
	}
	return p.Session.Identity()
}

// Middleware resolves the session cookie into a Principal.
type Middleware struct {
	sessions *SessionManager
	users    repository.UserRepository
}

// NewMiddleware constructs middleware.
func NewMiddleware(sessions *SessionManager, users repository.UserRepository) *Middleware {
	return &Middleware{sessions: sessions, users: users}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal == nil {
		return errorutil.NewUnauthenticated("not logged in")
	}
	if principal.User == nil {
		return errorutil.NewUnauthenticated("account no longer exists")
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional loads a principal when a valid session cookie is present but
// lets anonymous requests through, and keeps a principal whose account
// has since been deleted. Used for role_check's tri-state and for logout,
// where a stale session still needs revoking.
func (m *Middleware) Optional(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	if principal != nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

func (m *Middleware) resolve(c *fiber.Ctx) (*Principal, error) {
	token := c.Cookies(SessionCookie)
	if token == "" {
		return nil, nil
	}

	session, err := m.sessions.Resolve(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, nil
		}
		return nil, errorutil.NewStoreError(err)
	}

	principal := &Principal{Session: session}
	user, err := m.users.GetByID(c.UserContext(), session.UserID)
	switch {
	case err == nil:
		principal.User = user
	case errors.Is(err, pgx.ErrNoRows):
		// account deleted while the session was live
	default:
		return nil, errorutil.NewStoreError(err)
	}
	return principal, nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
