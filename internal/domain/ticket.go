package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusActive  TicketStatus = "Active"
	TicketStatusPending TicketStatus = "Pending"
	TicketStatusClosed  TicketStatus = "Closed"
)

// Valid reports whether the status is one of the closed set.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusActive, TicketStatusPending, TicketStatusClosed:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests. CustomerID references the
// owning user; CustomerName is a snapshot taken at creation and never
// re-derived, so renames and deletions do not rewrite history.
type Ticket struct {
	ID            string
	Title         string
	Status        TicketStatus
	CustomerID    string
	CustomerName  string
	LastUpdatedOn time.Time
	Notes         []Note
}

// Note is an immutable message appended to a ticket. Notes are never
// edited or removed; insertion order is the ticket's note ordering.
type Note struct {
	ID         string
	TicketID   string
	Text       string
	AddedBy    string
	Attachment *string
	Timestamp  time.Time
}
