package events

import (
	"time"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketNoteAdded     EventType = "ticket_note_added"
	EventUserRoleChanged     EventType = "user_role_changed"
)

// Actor identifies who triggered an event.
type Actor struct {
	UserID string      `json:"user_id"`
	Name   string      `json:"name"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketID     string `json:"ticket_id"`
	Title        string `json:"title"`
	CustomerName string `json:"customer_name"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	TicketID  string              `json:"ticket_id"`
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketNoteAddedPayload payload.
type TicketNoteAddedPayload struct {
	TicketID    string `json:"ticket_id"`
	AddedBy     string `json:"added_by"`
	TextPreview string `json:"text_preview"`
}

// UserRoleChangedPayload payload.
type UserRoleChangedPayload struct {
	UserID  string      `json:"user_id"`
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}
