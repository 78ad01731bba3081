package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/http/handlers"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes. Paths match the legacy backend so the
// existing SPA keeps working; privileged routes gained the role guards the
// legacy backend lacked.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	// Optional so a session whose account was deleted can still be revoked.
	app.Get("/logout", cfg.AuthMiddleware.Optional, cfg.Auth.Logout)

	api := app.Group("/api")
	api.Post("/register", cfg.Auth.Register)
	api.Post("/login", cfg.Auth.Login)
	api.Get("/role_check", cfg.AuthMiddleware.Optional, cfg.Auth.RoleCheck)

	staffOnly := auth.RequireRole(domain.RoleAgent, domain.RoleAdmin)
	adminOnly := auth.RequireRole(domain.RoleAdmin)

	api.Post("/tickets", cfg.AuthMiddleware.Handle, cfg.Tickets.Create)
	api.Get("/all/tickets", cfg.AuthMiddleware.Handle, staffOnly, cfg.Tickets.ListAll)
	api.Get("/customer/tickets", cfg.AuthMiddleware.Handle, cfg.Tickets.ListMine)
	// registered before /tickets/:id so "stats" is not taken for an id
	api.Get("/tickets/stats", cfg.AuthMiddleware.Handle, staffOnly, cfg.Tickets.Stats)
	api.Get("/tickets/:id", cfg.AuthMiddleware.Handle, cfg.Tickets.Get)
	api.Put("/tickets/:id/status", cfg.AuthMiddleware.Handle, staffOnly, cfg.Tickets.UpdateStatus)
	api.Post("/tickets/:id/notes", cfg.AuthMiddleware.Handle, cfg.Tickets.AddNote)

	api.Post("/create_user", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.Create)
	api.Put("/update_users/:id", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.UpdateRole)
	api.Post("/delete_users", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.Delete)
	api.Get("/users/stats", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.Stats)
	api.Get("/all/users", cfg.AuthMiddleware.Handle, adminOnly, cfg.Users.ListAll)
}
