package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/events"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// UserService owns account lifecycle, credential checks and role
// administration.
type UserService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	bcryptCost int
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// UserStats aggregates account counts per role.
type UserStats struct {
	Customers int
	Agents    int
	Admins    int
}

// RoleState is the outcome of resolving a session identity to a role.
type RoleState int

const (
	RoleStateNotLoggedIn RoleState = iota
	RoleStateNotFound
	RoleStateLoggedIn
)

// RoleResolution is the tri-state result driving client routing.
type RoleResolution struct {
	State RoleState
	Role  domain.Role
}

// NewUserService builds the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	return &UserService{
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account with a bcrypt-hashed credential. The role
// defaults to Customer when unspecified. Both email and display name must
// be unique; login and ticket ownership key off the name, so a name
// collision would merge accounts.
func (s *UserService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, errorutil.NewValidationError("name, email, password required", nil)
	}
	if role == "" {
		role = domain.DefaultRole
	}
	if !role.Valid() {
		return nil, errorutil.NewValidationError("invalid role", map[string]any{"role": role})
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials by display name. Unknown names and
// wrong passwords fail identically so account existence does not leak.
func (s *UserService) Authenticate(ctx context.Context, name, password string) (*domain.Identity, error) {
	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewInvalidCredentials()
		}
		return nil, errorutil.NewStoreError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, errorutil.NewInvalidCredentials()
	}
	return &domain.Identity{UserID: user.ID, Name: user.Name, Role: user.Role}, nil
}

// CreateDirect is the administrative creation path. The account has no
// credential, so it cannot log in until one is provisioned out of band.
func (s *UserService) CreateDirect(ctx context.Context, name, email string, role domain.Role) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" {
		return nil, errorutil.NewValidationError("name and email required", nil)
	}
	if role == "" {
		role = domain.DefaultRole
	}
	if !role.Valid() {
		return nil, errorutil.NewValidationError("invalid role", map[string]any{"role": role})
	}

	user := &domain.User{
		Name:  name,
		Email: email,
		Role:  role,
	}
	if err := s.createUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetRole assigns a new role to an existing account.
func (s *UserService) SetRole(ctx context.Context, identity *domain.Identity, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, errorutil.NewValidationError("invalid role", map[string]any{"role": role})
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, errorutil.NewNotFound("user", map[string]any{"id": id})
	}

	current, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, errorutil.NewStoreError(err)
	}

	user, err := s.users.UpdateRole(ctx, id, role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorutil.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, errorutil.NewStoreError(err)
	}

	if identity != nil && current.Role != user.Role {
		s.publishEvent(ctx, *identity, events.Event{
			Type: events.EventUserRoleChanged,
			Payload: events.UserRoleChangedPayload{
				UserID:  user.ID,
				OldRole: current.Role,
				NewRole: user.Role,
			},
		})
	}
	return user, nil
}

// Delete permanently removes an account. Tickets already attributed to the
// account are left untouched.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errorutil.NewNotFound("user", map[string]any{"id": id})
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errorutil.NewNotFound("user", map[string]any{"id": id})
		}
		return errorutil.NewStoreError(err)
	}
	return nil
}

// ListAll returns every account.
func (s *UserService) ListAll(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, errorutil.NewStoreError(err)
	}
	return users, nil
}

// Stats computes per-role account counts at call time.
func (s *UserService) Stats(ctx context.Context) (UserStats, error) {
	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return UserStats{}, errorutil.NewStoreError(err)
	}
	return UserStats{
		Customers: counts[domain.RoleCustomer],
		Agents:    counts[domain.RoleAgent],
		Admins:    counts[domain.RoleAdmin],
	}, nil
}

// ResolveRole maps a session identity to the account's current role. The
// session copy of the role is treated as a hint only; the stored account
// is authoritative.
func (s *UserService) ResolveRole(ctx context.Context, identity *domain.Identity) (RoleResolution, error) {
	if identity == nil {
		return RoleResolution{State: RoleStateNotLoggedIn}, nil
	}
	user, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleResolution{State: RoleStateNotFound}, nil
		}
		return RoleResolution{}, errorutil.NewStoreError(err)
	}
	return RoleResolution{State: RoleStateLoggedIn, Role: user.Role}, nil
}

func (s *UserService) createUser(ctx context.Context, user *domain.User) error {
	err := s.users.Create(ctx, user)
	if err == nil {
		return nil
	}
	switch {
	case repository.IsUniqueViolation(err, "users_email_key"):
		return errorutil.NewConflict("email already registered", map[string]any{"email": user.Email})
	case repository.IsUniqueViolation(err, "users_name_key"):
		return errorutil.NewConflict("name already taken", map[string]any{"name": user.Name})
	case repository.IsUniqueViolation(err, ""):
		return errorutil.NewConflict("user already exists", nil)
	}
	return errorutil.NewStoreError(err)
}

func (s *UserService) publishEvent(ctx context.Context, identity domain.Identity, event events.Event) {
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
