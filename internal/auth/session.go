package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

// ErrSessionNotFound indicates the session was revoked or has expired.
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record backing a session token. A token is
// only honored while its record exists, so logout revokes it immediately.
type Session struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Name      string      `json:"name"`
	Role      domain.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Identity converts the session record into a caller identity.
func (s *Session) Identity() domain.Identity {
	return domain.Identity{UserID: s.UserID, Name: s.Name, Role: s.Role}
}

// SessionStore persists session records with expiry.
type SessionStore interface {
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

const sessionKeyPrefix = "session:"

type redisSessionStore struct {
	client *redis.Client
}

// NewRedisSessionStore returns a Redis-backed store. Records expire via
// Redis TTL, so stale sessions need no sweeper.
func NewRedisSessionStore(client *redis.Client) SessionStore {
	return &redisSessionStore{client: client}
}

func (s *redisSessionStore) Save(ctx context.Context, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}
	return s.client.Set(ctx, sessionKeyPrefix+session.ID, payload, ttl).Err()
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var session Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}
