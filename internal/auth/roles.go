package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// RequireRole ensures the authenticated caller holds one of the allowed
// roles. The role is always re-checked against the loaded account, never
// trusted from the client.
func RequireRole(allowed ...domain.Role) fiber.Handler {
	allowedSet := make(map[domain.Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.User == nil {
			return errorutil.NewUnauthenticated("not logged in")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.User.Role]; !exists {
			return errorutil.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
