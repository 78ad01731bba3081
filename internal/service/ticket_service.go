package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/events"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// TicketService owns the business rules for the ticket lifecycle.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
}

// StatusCounts aggregates ticket counts per lifecycle state.
type StatusCounts struct {
	Active  int
	Pending int
	Closed  int
}

// Total returns the full ticket count.
func (c StatusCounts) Total() int {
	return c.Active + c.Pending + c.Closed
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
	}
}

// Create opens a new ticket owned by the caller. Ownership is stamped from
// the verified identity, never from the request body.
func (s *TicketService) Create(ctx context.Context, identity *domain.Identity, title string) (*domain.Ticket, error) {
	if identity == nil || identity.Name == "" {
		return nil, errorutil.NewUnauthenticated("not logged in")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errorutil.NewValidationError("title required", nil)
	}

	ticket := &domain.Ticket{
		Title:        title,
		Status:       domain.TicketStatusActive,
		CustomerID:   identity.UserID,
		CustomerName: identity.Name,
		Notes:        []domain.Note{},
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, errorutil.NewStoreError(err)
	}

	s.publishEvent(ctx, *identity, events.Event{
		Type: events.EventTicketCreated,
		Payload: events.TicketCreatedPayload{
			TicketID:     ticket.ID,
			Title:        ticket.Title,
			CustomerName: ticket.CustomerName,
		},
	})
	return ticket, nil
}

// ListAll returns every ticket, most recently touched first.
func (s *TicketService) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return tickets, nil
}

// ListForCustomer returns the caller's tickets, most recently touched
// first. A customer with no tickets gets an empty slice, not an error.
func (s *TicketService) ListForCustomer(ctx context.Context, identity *domain.Identity) ([]domain.Ticket, error) {
	if identity == nil {
		return nil, errorutil.NewUnauthenticated("not logged in")
	}
	tickets, err := s.tickets.ListByCustomer(ctx, identity.UserID)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return tickets, nil
}

// Get fetches one ticket. Customers may only read their own; agents and
// admins may read any.
func (s *TicketService) Get(ctx context.Context, identity *domain.Identity, id string) (*domain.Ticket, error) {
	if identity == nil {
		return nil, errorutil.NewUnauthenticated("not logged in")
	}
	ticket, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Role == domain.RoleCustomer && ticket.CustomerID != identity.UserID {
		return nil, errorutil.NewForbidden("not your ticket")
	}
	return ticket, nil
}

// UpdateStatus transitions a ticket to a new lifecycle state and refreshes
// its last-updated timestamp.
func (s *TicketService) UpdateStatus(ctx context.Context, identity *domain.Identity, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	if !status.Valid() {
		return nil, errorutil.NewValidationError("invalid status", map[string]any{"status": status})
	}
	current, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	ticket, err := s.tickets.UpdateStatus(ctx, current.ID, status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, errorutil.NewStoreError(err)
	}

	if identity != nil {
		s.publishEvent(ctx, *identity, events.Event{
			Type: events.EventTicketStatusChanged,
			Payload: events.TicketStatusChangedPayload{
				TicketID:  ticket.ID,
				OldStatus: current.Status,
				NewStatus: ticket.Status,
			},
		})
	}
	return ticket, nil
}

// AppendNote adds an immutable note to the ticket. The author is always
// the verified caller; a client-supplied author is ignored. Returns the
// full ticket including the complete note sequence.
func (s *TicketService) AppendNote(ctx context.Context, identity *domain.Identity, id, text string, attachment *string) (*domain.Ticket, error) {
	if identity == nil || identity.Name == "" {
		return nil, errorutil.NewUnauthenticated("not logged in")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errorutil.NewValidationError("text required", nil)
	}

	ticket, err := s.getByID(ctx, id)
	if err != nil {
		return nil, err
	}

	note := &domain.Note{
		TicketID:   ticket.ID,
		Text:       text,
		AddedBy:    identity.Name,
		Attachment: attachment,
	}
	if err := s.tickets.AppendNote(ctx, note); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, errorutil.NewStoreError(err)
	}

	updated, err := s.getByID(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, *identity, events.Event{
		Type: events.EventTicketNoteAdded,
		Payload: events.TicketNoteAddedPayload{
			TicketID:    updated.ID,
			AddedBy:     note.AddedBy,
			TextPreview: textPreview(note.Text, 120),
		},
	})
	return updated, nil
}

// StatusCounts computes per-status ticket counts at call time.
func (s *TicketService) StatusCounts(ctx context.Context) (StatusCounts, error) {
	counts, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return StatusCounts{}, errorutil.NewStoreError(err)
	}
	return StatusCounts{
		Active:  counts[domain.TicketStatusActive],
		Pending: counts[domain.TicketStatusPending],
		Closed:  counts[domain.TicketStatusClosed],
	}, nil
}

func (s *TicketService) getByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errorutil.NewNotFound("ticket", map[string]any{"id": id})
	}
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, errorutil.NewStoreError(err)
	}
	return ticket, nil
}

func (s *TicketService) publishEvent(ctx context.Context, identity domain.Identity, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.Actor = events.Actor{UserID: identity.UserID, Name: identity.Name, Role: identity.Role}
	_ = s.dispatcher.Publish(ctx, event)
}

func textPreview(text string, max int) string {
	text = strings.TrimSpace(text)
	if len(text) <= max {
		return text
	}
	if max <= 3 {
		return text[:max]
	}
	return text[:max-3] + "..."
}
