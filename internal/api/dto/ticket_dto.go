package dto

import (
	"time"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload for POST /api/tickets.
type CreateTicketRequest struct {
	Title string `json:"title"`
}

// UpdateStatusRequest payload for PUT /api/tickets/:id/status.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AddNoteRequest payload for POST /api/tickets/:id/notes. AddedBy is
// accepted for compatibility with the legacy client but ignored; the
// author is always the verified session identity.
type AddNoteRequest struct {
	Text       string  `json:"text"`
	AddedBy    string  `json:"addedBy"`
	Attachment *string `json:"attachment"`
}

// NoteResponse mirrors the legacy note shape.
type NoteResponse struct {
	Text       string    `json:"text"`
	AddedBy    string    `json:"addedBy"`
	Attachment *string   `json:"attachment,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TicketResponse mirrors the legacy ticket shape.
type TicketResponse struct {
	ID            string              `json:"id"`
	Title         string              `json:"title"`
	Status        domain.TicketStatus `json:"status"`
	CustomerName  string              `json:"customerName"`
	LastUpdatedOn time.Time           `json:"lastUpdatedOn"`
	Notes         []NoteResponse      `json:"notes"`
}

// TicketStatsResponse mirrors the legacy stats payload keys.
type TicketStatsResponse struct {
	Active  int `json:"Active"`
	Pending int `json:"Pending"`
	Closed  int `json:"Closed"`
}

// NewTicketResponse maps a domain ticket including its note sequence.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	notes := make([]NoteResponse, 0, len(ticket.Notes))
	for _, note := range ticket.Notes {
		notes = append(notes, NoteResponse{
			Text:       note.Text,
			AddedBy:    note.AddedBy,
			Attachment: note.Attachment,
			Timestamp:  note.Timestamp,
		})
	}
	return TicketResponse{
		ID:            ticket.ID,
		Title:         ticket.Title,
		Status:        ticket.Status,
		CustomerName:  ticket.CustomerName,
		LastUpdatedOn: ticket.LastUpdatedOn,
		Notes:         notes,
	}
}

// NewTicketResponses maps a ticket slice preserving order.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}
