package domain

import "time"

// Role governs which operations an account may invoke.
type Role string

const (
	RoleCustomer Role = "Customer"
	RoleAgent    Role = "Agent"
	RoleAdmin    Role = "Admin"
)

// DefaultRole applies when registration omits a role.
const DefaultRole = RoleCustomer

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is an account that can log in and act on tickets.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the verified caller bound to a session. It carries just
// enough to stamp ticket ownership and note authorship.
type Identity struct {
	UserID string
	Name   string
	Role   Role
}
