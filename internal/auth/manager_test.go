package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/helpdesk-kit/helpdesk/internal/domain"
)

type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*Session)}
}

func (s *memorySessionStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok || time.Now().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *memorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var _ SessionStore = (*memorySessionStore)(nil)

func TestSessionLifecycle(t *testing.T) {
	manager := NewSessionManager(NewTokenManager("test-secret", time.Hour), newMemorySessionStore())
	identity := domain.Identity{UserID: "u-1", Name: "alice", Role: domain.RoleAgent}

	token, _, err := manager.Issue(context.Background(), identity)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	session, err := manager.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := session.Identity(); got != identity {
		t.Errorf("identity = %+v, want %+v", got, identity)
	}

	if err := manager.Revoke(context.Background(), session.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := manager.Resolve(context.Background(), token); err != ErrSessionNotFound {
		t.Errorf("resolve after revoke = %v, want ErrSessionNotFound", err)
	}
}

func TestResolveRejectsForgedToken(t *testing.T) {
	store := newMemorySessionStore()
	manager := NewSessionManager(NewTokenManager("test-secret", time.Hour), store)
	forger := NewSessionManager(NewTokenManager("other-secret", time.Hour), store)

	token, _, err := forger.Issue(context.Background(), domain.Identity{UserID: "u-1", Name: "mallory"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := manager.Resolve(context.Background(), token); err != ErrSessionNotFound {
		t.Errorf("forged token resolved: %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "pw123" {
		t.Fatal("password stored without hashing")
	}
	if err := ComparePassword(hash, "pw123"); err != nil {
		t.Error("correct password rejected")
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
}
