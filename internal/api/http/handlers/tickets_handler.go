package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/dto"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create POST /api/tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	identity := principal.Identity()
	ticket, err := h.service.Create(c.UserContext(), &identity, req.Title)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewTicketResponse(ticket))
}

// ListAll GET /api/all/tickets.
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	tickets, err := h.service.ListAll(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponses(tickets))
}

// ListMine GET /api/customer/tickets.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	identity := principal.Identity()
	tickets, err := h.service.ListForCustomer(c.UserContext(), &identity)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponses(tickets))
}

// Get GET /api/tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	identity := principal.Identity()
	ticket, err := h.service.Get(c.UserContext(), &identity, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	identity := principal.Identity()
	ticket, err := h.service.UpdateStatus(c.UserContext(), &identity, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// AddNote POST /api/tickets/:id/notes.
func (h *TicketsHandler) AddNote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return errorutil.NewUnauthenticated("not logged in")
	}
	var req dto.AddNoteRequest
	if err := c.BodyParser(&req); err != nil {
		return errorutil.NewValidationError("invalid payload", nil)
	}

	identity := principal.Identity()
	ticket, err := h.service.AppendNote(c.UserContext(), &identity, c.Params("id"), req.Text, req.Attachment)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponse(ticket))
}

// Stats GET /api/tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	counts, err := h.service.StatusCounts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketStatsResponse{
		Active:  counts.Active,
		Pending: counts.Pending,
		Closed:  counts.Closed,
	})
}
