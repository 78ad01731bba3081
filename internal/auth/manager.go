package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// SessionManager issues, resolves and revokes session tokens. A token is a
// signed JWT naming a server-side session record; both the signature and
// the record must check out for the token to be honored.
type SessionManager struct {
	tokens *TokenManager
	store  SessionStore
}

// NewSessionManager builds the manager.
func NewSessionManager(tokens *TokenManager, store SessionStore) *SessionManager {
	return &SessionManager{tokens: tokens, store: store}
}

// Issue creates a session for the identity and returns the signed token.
func (m *SessionManager) Issue(ctx context.Context, identity domain.Identity) (string, time.Time, error) {
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    identity.UserID,
		Name:      identity.Name,
		Role:      identity.Role,
		ExpiresAt: time.Now().Add(m.tokens.TTL()),
	}
	if err := m.store.Save(ctx, session); err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := m.tokens.GenerateToken(identity, session.ID)
	if err != nil {
		_ = m.store.Delete(ctx, session.ID)
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Resolve verifies the token signature and that its session is still live.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*Session, error) {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	session, err := m.store.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Revoke deletes the session record, invalidating its token.
func (m *SessionManager) Revoke(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}
