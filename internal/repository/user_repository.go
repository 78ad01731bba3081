package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByName(ctx context.Context, name string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]domain.User, error)
	CountByRole(ctx context.Context) (map[domain.Role]int, error)
}

type userRepository struct {
	pool  *pgxpool.Pool
	retry *persistence.Retryer
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool, retry *persistence.Retryer) UserRepository {
	return &userRepository{pool: pool, retry: retry}
}

const userColumns = `id, name, email, password_hash, role, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query,
			user.Name,
			user.Email,
			user.PasswordHash,
			user.Role,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByName(ctx context.Context, name string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE name=$1`
	return r.fetchSingle(ctx, query, name)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	err := r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query, arg).Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) UpdateRole(ctx context.Context, id string, role domain.Role) (*domain.User, error) {
	const query = `
        UPDATE users SET role=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING ` + userColumns

	var user domain.User
	err := r.retry.Do(ctx, func() error {
		return r.pool.QueryRow(ctx, query, role, id).Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id=$1`
	return r.retry.Do(ctx, func() error {
		cmd, err := r.pool.Exec(ctx, query, id)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		return nil
	})
}

func (r *userRepository) ListAll(ctx context.Context) ([]domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC`

	var result []domain.User
	err := r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = result[:0]
		for rows.Next() {
			var user domain.User
			if err := rows.Scan(
				&user.ID,
				&user.Name,
				&user.Email,
				&user.PasswordHash,
				&user.Role,
				&user.CreatedAt,
				&user.UpdatedAt,
			); err != nil {
				return err
			}
			result = append(result, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *userRepository) CountByRole(ctx context.Context) (map[domain.Role]int, error) {
	const query = `SELECT role, COUNT(*) FROM users GROUP BY role`

	counts := make(map[domain.Role]int)
	err := r.retry.Do(ctx, func() error {
		rows, err := r.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(counts)
		for rows.Next() {
			var role domain.Role
			var count int
			if err := rows.Scan(&role, &count); err != nil {
				return err
			}
			counts[role] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
