package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
)

// TicketRepository encapsulates ticket persistence. Note append is a
// separate row insert so concurrent appends are each durable; the ticket's
// last_updated_on only ever moves forward.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	AppendNote(ctx context.Context, note *domain.Note) error
	CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error)
}

type ticketRepository struct {
	pool  *pgxpool.Pool
	retry *persistence.Retryer
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool, retry *persistence.Retryer) TicketRepository {
	return &ticketRepository{pool: pool, retry: retry}
}

const ticketColumns = `id, title, status, customer_user_id, customer_name, last_updated_on`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, status, customer_user_id, customer_name)
        VALUES ($1, $2, $3, $4)
        RETURNING id, last_updated_on`

	return r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query,
			ticket.Title,
			ticket.Status,
			ticket.CustomerID,
			ticket.CustomerName,
		).Scan(&ticket.ID, &ticket.LastUpdatedOn)
	})
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`

	var ticket domain.Ticket
	err := r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query, id).Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Status,
			&ticket.CustomerID,
			&ticket.CustomerName,
			&ticket.LastUpdatedOn,
		)
	})
	if err != nil {
		return nil, err
	}
	tickets := []domain.Ticket{ticket}
	if err := r.attachNotes(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets ORDER BY last_updated_on DESC, id DESC`
	return r.list(ctx, query)
}

func (r *ticketRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets
        WHERE customer_user_id=$1 ORDER BY last_updated_on DESC, id DESC`
	return r.list(ctx, query, customerID)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	var result []domain.Ticket
	err := r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var ticket domain.Ticket
			if err := rows.Scan(
				&ticket.ID,
				&ticket.Title,
				&ticket.Status,
				&ticket.CustomerID,
				&ticket.CustomerName,
				&ticket.LastUpdatedOn,
			); err != nil {
				return err
			}
			result = append(result, ticket)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if err := r.attachNotes(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	// GREATEST keeps last_updated_on monotonic under clock skew.
	const query = `
        UPDATE tickets SET status=$1, last_updated_on=GREATEST(last_updated_on, NOW())
        WHERE id=$2
        RETURNING ` + ticketColumns

	var ticket domain.Ticket
	err := r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query, status, id).Scan(
			&ticket.ID,
			&ticket.Title,
			&ticket.Status,
			&ticket.CustomerID,
			&ticket.CustomerName,
			&ticket.LastUpdatedOn,
		)
	})
	if err != nil {
		return nil, err
	}
	tickets := []domain.Ticket{ticket}
	if err := r.attachNotes(ctx, tickets); err != nil {
		return nil, err
	}
	return &tickets[0], nil
}

func (r *ticketRepository) AppendNote(ctx context.Context, note *domain.Note) error {
	const insertQuery = `
        INSERT INTO ticket_notes (ticket_id, text, added_by, attachment)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`
	const touchQuery = `
        UPDATE tickets SET last_updated_on=GREATEST(last_updated_on, NOW()) WHERE id=$1`

	// Insert and touch commit together; a replayed attempt starts from a
	// rolled-back state, so one logical append yields exactly one row.
	return r.retry.Do(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if err := tx.QueryRow(ctx, insertQuery,
			note.TicketID,
			note.Text,
			note.AddedBy,
			note.Attachment,
		).Scan(&note.ID, &note.Timestamp); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, touchQuery, note.TicketID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return tx.Commit(ctx)
	})
}

func (r *ticketRepository) CountByStatus(ctx context.Context) (map[domain.TicketStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`

	counts := make(map[domain.TicketStatus]int)
	err := r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(counts)
		for rows.Next() {
			var status domain.TicketStatus
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			counts[status] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// attachNotes loads the note sequences for the given tickets in insertion
// order, one query for the whole batch.
func (r *ticketRepository) attachNotes(ctx context.Context, tickets []domain.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	ids := make([]string, len(tickets))
	index := make(map[string]int, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		index[tickets[i].ID] = i
		tickets[i].Notes = []domain.Note{}
	}

	const query = `
        SELECT id, ticket_id, text, added_by, attachment, created_at
        FROM ticket_notes WHERE ticket_id = ANY($1) ORDER BY seq ASC`

	return r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query, ids)
		if err != nil {
			return err
		}
		defer rows.Close()

		for i := range tickets {
			tickets[i].Notes = tickets[i].Notes[:0]
		}
		for rows.Next() {
			var note domain.Note
			if err := rows.Scan(
				&note.ID,
				&note.TicketID,
				&note.Text,
				&note.AddedBy,
				&note.Attachment,
				&note.Timestamp,
			); err != nil {
				return err
			}
			if i, ok := index[note.TicketID]; ok {
				tickets[i].Notes = append(tickets[i].Notes, note)
			}
		}
		return rows.Err()
	})
}
