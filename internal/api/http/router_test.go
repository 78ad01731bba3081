package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/helpdesk-kit/helpdesk/internal/api/http"
	"github.com/helpdesk-kit/helpdesk/internal/api/http/handlers"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/config"
	"github.com/helpdesk-kit/helpdesk/internal/domain"
	"github.com/helpdesk-kit/helpdesk/internal/events"
	"github.com/helpdesk-kit/helpdesk/internal/observability"
	"github.com/helpdesk-kit/helpdesk/internal/persistence"
	"github.com/helpdesk-kit/helpdesk/internal/repository"
	"github.com/helpdesk-kit/helpdesk/internal/service"
)

// --- in-memory stand-ins for the Postgres repositories ---

type memUserRepo struct {
	mu    sync.Mutex
	users []*domain.User
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Name == user.Name {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_name_key"}
		}
		if existing.Email == user.Email {
			return &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users = append(r.users, &copied)
	return nil
}

func (r *memUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if match(user) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *memUserRepo) GetByName(_ context.Context, name string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Name == name })
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *memUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.ID == id {
			user.Role = role
			user.UpdatedAt = time.Now()
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, user := range r.users {
		if user.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memUserRepo) ListAll(_ context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, *user)
	}
	return result, nil
}

func (r *memUserRepo) CountByRole(_ context.Context) (map[domain.Role]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.Role]int)
	for _, user := range r.users {
		counts[user.Role]++
	}
	return counts, nil
}

type memTicketRepo struct {
	mu      sync.Mutex
	tickets []*domain.Ticket
}

func (r *memTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.LastUpdatedOn = time.Now()
	copied := *ticket
	copied.Notes = append([]domain.Note{}, ticket.Notes...)
	r.tickets = append(r.tickets, &copied)
	return nil
}

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ID == id {
			return copyTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) ListAll(_ context.Context) ([]domain.Ticket, error) {
	return r.list(func(*domain.Ticket) bool { return true })
}

func (r *memTicketRepo) ListByCustomer(_ context.Context, customerID string) ([]domain.Ticket, error) {
	return r.list(func(t *domain.Ticket) bool { return t.CustomerID == customerID })
}

func (r *memTicketRepo) list(match func(*domain.Ticket) bool) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]domain.Ticket, 0, len(r.tickets))
	for _, ticket := range r.tickets {
		if match(ticket) {
			result = append(result, *copyTicket(ticket))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LastUpdatedOn.After(result[j].LastUpdatedOn)
	})
	return result, nil
}

func (r *memTicketRepo) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ID == id {
			ticket.Status = status
			ticket.LastUpdatedOn = laterOf(ticket.LastUpdatedOn, time.Now())
			return copyTicket(ticket), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTicketRepo) AppendNote(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.ID == note.TicketID {
			note.ID = uuid.NewString()
			note.Timestamp = time.Now()
			ticket.Notes = append(ticket.Notes, *note)
			ticket.LastUpdatedOn = laterOf(ticket.LastUpdatedOn, note.Timestamp)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memTicketRepo) CountByStatus(_ context.Context) (map[domain.TicketStatus]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.TicketStatus]int)
	for _, ticket := range r.tickets {
		counts[ticket.Status]++
	}
	return counts, nil
}

func copyTicket(ticket *domain.Ticket) *domain.Ticket {
	copied := *ticket
	copied.Notes = append([]domain.Note{}, ticket.Notes...)
	return &copied
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]auth.Session
}

func (s *memSessionStore) Save(_ context.Context, session *auth.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = *session
	return nil
}

func (s *memSessionStore) Get(_ context.Context, id string) (*auth.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, auth.ErrSessionNotFound
	}
	return &session, nil
}

func (s *memSessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)
var _ repository.TicketRepository = (*memTicketRepo)(nil)
var _ auth.SessionStore = (*memSessionStore)(nil)

// --- test app assembly ---

type testEnv struct {
	app      *fiber.App
	users    *memUserRepo
	tickets  *memTicketRepo
	sessions *memSessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	userRepo := &memUserRepo{}
	ticketRepo := &memTicketRepo{}
	sessionStore := &memSessionStore{sessions: make(map[string]auth.Session)}

	authCfg := config.AuthConfig{
		JWTSecret:         "test-secret",
		SessionTTLMinutes: 60,
		BcryptCost:        bcrypt.MinCost,
	}
	dispatcher := events.NewInMemoryDispatcher()
	userService := service.NewUserService(authCfg, service.UserDependencies{UserRepo: userRepo, Dispatcher: dispatcher})
	ticketService := service.NewTicketService(service.TicketDependencies{TicketRepo: ticketRepo, Dispatcher: dispatcher})

	tokenMgr := auth.NewTokenManager(authCfg.JWTSecret, authCfg.SessionTTL())
	sessionMgr := auth.NewSessionManager(tokenMgr, sessionStore)
	middleware := auth.NewMiddleware(sessionMgr, userRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, config.AppConfig{RequestTimeoutSeconds: 5, AllowOrigins: "http://localhost:5173"}, zap.NewNop(), observability.NewMetrics())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-test", "dev", &persistence.Postgres{}, &persistence.Redis{}),
		Auth:           handlers.NewAuthHandler(userService, sessionMgr, authCfg),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: middleware,
	})

	return &testEnv{app: app, users: userRepo, tickets: ticketRepo, sessions: sessionStore}
}

func (e *testEnv) do(t *testing.T, method, path, cookie string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: cookie})
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

func (e *testEnv) doList(t *testing.T, method, path, cookie string) (*http.Response, []map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: cookie})
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func (e *testEnv) register(t *testing.T, name, email, password string, role domain.Role) {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"name": name, "email": email, "password": password, "role": role,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", name, resp.StatusCode, body)
	}
}

func (e *testEnv) login(t *testing.T, name, password string) string {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/login", "", map[string]any{
		"name": name, "password": password,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s: status %d body %v", name, resp.StatusCode, body)
	}
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookie {
			return cookie.Value
		}
	}
	t.Fatal("login response set no session cookie")
	return ""
}

// listUsers unpacks the "users" envelope the admin dashboard reads from.
func (e *testEnv) listUsers(t *testing.T, cookie string) []map[string]any {
	t.Helper()
	resp, body := e.do(t, http.MethodGet, "/api/all/users", cookie, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: status %d body %v", resp.StatusCode, body)
	}
	wrapped, ok := body["users"].([]any)
	if !ok {
		t.Fatalf(`list users: no "users" array in %v`, body)
	}
	users := make([]map[string]any, 0, len(wrapped))
	for _, item := range wrapped {
		user, _ := item.(map[string]any)
		users = append(users, user)
	}
	return users
}

func parseTime(t *testing.T, value any) time.Time {
	t.Helper()
	raw, _ := value.(string)
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		t.Fatalf("timestamp %q: %v", raw, err)
	}
	return parsed
}

func errCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

// --- tests ---

func TestRegisterAndLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "a@x.com", "pw123", domain.RoleCustomer)

	resp, body := env.do(t, http.MethodPost, "/api/login", "", map[string]any{"name": "alice", "password": "pw123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}
	user, _ := body["user"].(map[string]any)
	if user["role"] != "Customer" || user["name"] != "alice" {
		t.Errorf("login user = %v", user)
	}

	resp, body = env.do(t, http.MethodPost, "/api/login", "", map[string]any{"name": "alice", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: status %d", resp.StatusCode)
	}
	if errCode(body) != "INVALID_CREDENTIALS" {
		t.Errorf("wrong password code = %q", errCode(body))
	}

	// unknown user fails identically
	resp, body = env.do(t, http.MethodPost, "/api/login", "", map[string]any{"name": "nobody", "password": "pw123"})
	if resp.StatusCode != http.StatusUnauthorized || errCode(body) != "INVALID_CREDENTIALS" {
		t.Errorf("unknown user: status %d code %q", resp.StatusCode, errCode(body))
	}
}

func TestRegisterConflictsOnDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")

	resp, body := env.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"name": "alice2", "email": "a@x.com", "password": "pw",
	})
	if resp.StatusCode != http.StatusConflict || errCode(body) != "CONFLICT" {
		t.Errorf("duplicate email: status %d code %q", resp.StatusCode, errCode(body))
	}

	resp, body = env.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"name": "alice", "email": "other@x.com", "password": "pw",
	})
	if resp.StatusCode != http.StatusConflict || errCode(body) != "CONFLICT" {
		t.Errorf("duplicate name: status %d code %q", resp.StatusCode, errCode(body))
	}
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	env := newTestEnv(t)
	resp, body := env.do(t, http.MethodPost, "/api/register", "", map[string]any{
		"name": "eve", "email": "e@x.com", "password": "pw", "role": "Root",
	})
	if resp.StatusCode != http.StatusBadRequest || errCode(body) != "VALIDATION_FAILED" {
		t.Errorf("status %d code %q", resp.StatusCode, errCode(body))
	}
}

func TestTicketLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "agent1", "agent1@x.com", "pw123", domain.RoleAgent)
	alice := env.login(t, "alice", "pw123")
	agent := env.login(t, "agent1", "pw123")

	resp, ticket := env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "printer broken"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create ticket: status %d body %v", resp.StatusCode, ticket)
	}
	if ticket["status"] != "Active" || ticket["customerName"] != "alice" {
		t.Errorf("ticket = %v", ticket)
	}
	ticketID, _ := ticket["id"].(string)
	createdUpdatedOn := parseTime(t, ticket["lastUpdatedOn"])

	resp, mine := env.doList(t, http.MethodGet, "/api/customer/tickets", alice)
	if resp.StatusCode != http.StatusOK || len(mine) != 1 || mine[0]["id"] != ticketID {
		t.Fatalf("customer tickets: status %d list %v", resp.StatusCode, mine)
	}

	resp, updated := env.do(t, http.MethodPut, "/api/tickets/"+ticketID+"/status", agent, map[string]any{"status": "Pending"})
	if resp.StatusCode != http.StatusOK || updated["status"] != "Pending" {
		t.Fatalf("update status: status %d body %v", resp.StatusCode, updated)
	}
	afterUpdatedOn := parseTime(t, updated["lastUpdatedOn"])
	if afterUpdatedOn.Before(createdUpdatedOn) {
		t.Errorf("lastUpdatedOn moved backwards: %v -> %v", createdUpdatedOn, afterUpdatedOn)
	}

	// note author comes from the session, not the body
	resp, noted := env.do(t, http.MethodPost, "/api/tickets/"+ticketID+"/notes", agent, map[string]any{
		"text": "checking now", "addedBy": "someone-else",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add note: status %d body %v", resp.StatusCode, noted)
	}
	notes, _ := noted["notes"].([]any)
	if len(notes) != 1 {
		t.Fatalf("notes = %v", notes)
	}
	note, _ := notes[0].(map[string]any)
	if note["text"] != "checking now" || note["addedBy"] != "agent1" {
		t.Errorf("note = %v", note)
	}

	resp, stats := env.do(t, http.MethodGet, "/api/tickets/stats", agent, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: status %d", resp.StatusCode)
	}
	if stats["Active"] != float64(0) || stats["Pending"] != float64(1) || stats["Closed"] != float64(0) {
		t.Errorf("stats = %v", stats)
	}

	resp, body := env.do(t, http.MethodPut, "/api/tickets/"+ticketID+"/status", agent, map[string]any{"status": "Reopened"})
	if resp.StatusCode != http.StatusBadRequest || errCode(body) != "VALIDATION_FAILED" {
		t.Errorf("bad status: status %d code %q", resp.StatusCode, errCode(body))
	}
}

func TestTicketAuthorization(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "bob", "b@x.com", "pw123", "")
	env.register(t, "agent1", "agent1@x.com", "pw123", domain.RoleAgent)
	alice := env.login(t, "alice", "pw123")
	bob := env.login(t, "bob", "pw123")
	agent := env.login(t, "agent1", "pw123")

	_, ticket := env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "vpn down"})
	ticketID, _ := ticket["id"].(string)

	cases := []struct {
		name   string
		method string
		path   string
		cookie string
		body   any
		status int
	}{
		{"anonymous cannot list all", http.MethodGet, "/api/all/tickets", "", nil, http.StatusUnauthorized},
		{"customer cannot list all", http.MethodGet, "/api/all/tickets", alice, nil, http.StatusForbidden},
		{"agent lists all", http.MethodGet, "/api/all/tickets", agent, nil, http.StatusOK},
		{"customer cannot change status", http.MethodPut, "/api/tickets/" + ticketID + "/status", alice, map[string]any{"status": "Closed"}, http.StatusForbidden},
		{"customer cannot read stats", http.MethodGet, "/api/tickets/stats", alice, nil, http.StatusForbidden},
		{"other customer cannot read ticket", http.MethodGet, "/api/tickets/" + ticketID, bob, nil, http.StatusForbidden},
		{"owner reads own ticket", http.MethodGet, "/api/tickets/" + ticketID, alice, nil, http.StatusOK},
		{"agent reads any ticket", http.MethodGet, "/api/tickets/" + ticketID, agent, nil, http.StatusOK},
		{"anonymous cannot create", http.MethodPost, "/api/tickets", "", map[string]any{"title": "x"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, tc.method, tc.path, tc.cookie, tc.body)
			if resp.StatusCode != tc.status {
				t.Errorf("status = %d, want %d (body %v)", resp.StatusCode, tc.status, body)
			}
		})
	}
}

func TestListOrderingAndOwnershipFilter(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "bob", "b@x.com", "pw123", "")
	env.register(t, "agent1", "agent1@x.com", "pw123", domain.RoleAgent)
	alice := env.login(t, "alice", "pw123")
	bob := env.login(t, "bob", "pw123")
	agent := env.login(t, "agent1", "pw123")

	_, first := env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "first"})
	time.Sleep(5 * time.Millisecond)
	env.do(t, http.MethodPost, "/api/tickets", bob, map[string]any{"title": "second"})
	time.Sleep(5 * time.Millisecond)
	env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "third"})

	// touching the oldest ticket moves it to the front
	time.Sleep(5 * time.Millisecond)
	firstID, _ := first["id"].(string)
	env.do(t, http.MethodPost, "/api/tickets/"+firstID+"/notes", alice, map[string]any{"text": "still broken"})

	_, all := env.doList(t, http.MethodGet, "/api/all/tickets", agent)
	if len(all) != 3 {
		t.Fatalf("all tickets = %d", len(all))
	}
	gotTitles := []string{all[0]["title"].(string), all[1]["title"].(string), all[2]["title"].(string)}
	wantTitles := []string{"first", "third", "second"}
	for i := range wantTitles {
		if gotTitles[i] != wantTitles[i] {
			t.Fatalf("order = %v, want %v", gotTitles, wantTitles)
		}
	}

	// customer listing is exactly the owner's subset, same relative order
	_, mine := env.doList(t, http.MethodGet, "/api/customer/tickets", alice)
	if len(mine) != 2 || mine[0]["title"] != "first" || mine[1]["title"] != "third" {
		t.Errorf("alice tickets = %v", mine)
	}
	for _, ticket := range mine {
		if ticket["customerName"] != "alice" {
			t.Errorf("foreign ticket in customer list: %v", ticket)
		}
	}
}

func TestGetTicketNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "agent1", "agent1@x.com", "pw123", domain.RoleAgent)
	agent := env.login(t, "agent1", "pw123")

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		resp, body := env.do(t, http.MethodGet, "/api/tickets/"+id, agent, nil)
		if resp.StatusCode != http.StatusNotFound || errCode(body) != "NOT_FOUND" {
			t.Errorf("id %q: status %d code %q", id, resp.StatusCode, errCode(body))
		}
	}
}

func TestRoleCheckTriState(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "admin", "admin@x.com", "pw123", domain.RoleAdmin)
	alice := env.login(t, "alice", "pw123")
	admin := env.login(t, "admin", "pw123")

	resp, body := env.do(t, http.MethodGet, "/api/role_check", "", nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "User not logged in" {
		t.Errorf("anonymous: status %d body %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/role_check", alice, nil)
	if resp.StatusCode != http.StatusOK || body["role"] != "Customer" {
		t.Errorf("logged in: status %d body %v", resp.StatusCode, body)
	}

	// delete alice while her session is live
	var aliceID string
	for _, user := range env.listUsers(t, admin) {
		if user["name"] == "alice" {
			aliceID, _ = user["id"].(string)
		}
	}
	resp, _ = env.do(t, http.MethodPost, "/api/delete_users", admin, map[string]any{"user_id": aliceID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/role_check", alice, nil)
	if resp.StatusCode != http.StatusNotFound || body["message"] != "User not found" {
		t.Errorf("deleted account: status %d body %v", resp.StatusCode, body)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	alice := env.login(t, "alice", "pw123")

	resp, body := env.do(t, http.MethodGet, "/logout", alice, nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "User logged out" {
		t.Fatalf("logout: status %d body %v", resp.StatusCode, body)
	}

	// the same cookie no longer authenticates
	resp, _ = env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "nope"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("revoked session accepted: status %d", resp.StatusCode)
	}
}

func TestLogoutWorksAfterAccountDeleted(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "admin", "admin@x.com", "pw123", domain.RoleAdmin)
	alice := env.login(t, "alice", "pw123")
	admin := env.login(t, "admin", "pw123")

	var aliceID string
	for _, user := range env.listUsers(t, admin) {
		if user["name"] == "alice" {
			aliceID, _ = user["id"].(string)
		}
	}
	resp, _ := env.do(t, http.MethodPost, "/api/delete_users", admin, map[string]any{"user_id": aliceID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	// the stale session can still clear itself
	resp, body := env.do(t, http.MethodGet, "/logout", alice, nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "User logged out" {
		t.Fatalf("logout: status %d body %v", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/role_check", alice, nil)
	if resp.StatusCode != http.StatusOK || body["message"] != "User not logged in" {
		t.Errorf("after logout: status %d body %v", resp.StatusCode, body)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "admin", "admin@x.com", "pw123", domain.RoleAdmin)
	alice := env.login(t, "alice", "pw123")
	admin := env.login(t, "admin", "pw123")

	t.Run("admin endpoints reject non-admins", func(t *testing.T) {
		paths := []struct {
			method string
			path   string
			body   any
		}{
			{http.MethodPost, "/api/create_user", map[string]any{"name": "x", "email": "x@x.com"}},
			{http.MethodGet, "/api/all/users", nil},
			{http.MethodGet, "/api/users/stats", nil},
			{http.MethodPost, "/api/delete_users", map[string]any{"user_id": uuid.NewString()}},
		}
		for _, p := range paths {
			resp, _ := env.do(t, p.method, p.path, alice, p.body)
			if resp.StatusCode != http.StatusForbidden {
				t.Errorf("%s %s as customer: status %d", p.method, p.path, resp.StatusCode)
			}
		}
	})

	t.Run("admin creates and promotes a user", func(t *testing.T) {
		resp, created := env.do(t, http.MethodPost, "/api/create_user", admin, map[string]any{
			"name": "agent2", "email": "agent2@x.com", "role": "Agent",
		})
		if resp.StatusCode != http.StatusCreated || created["role"] != "Agent" {
			t.Fatalf("create_user: status %d body %v", resp.StatusCode, created)
		}
		userID, _ := created["id"].(string)

		resp, updated := env.do(t, http.MethodPut, "/api/update_users/"+userID, admin, map[string]any{"role": "Admin"})
		if resp.StatusCode != http.StatusOK || updated["role"] != "Admin" {
			t.Errorf("update role: status %d body %v", resp.StatusCode, updated)
		}

		resp, body := env.do(t, http.MethodPut, "/api/update_users/"+userID, admin, map[string]any{"role": "Wizard"})
		if resp.StatusCode != http.StatusBadRequest || errCode(body) != "VALIDATION_FAILED" {
			t.Errorf("bad role: status %d code %q", resp.StatusCode, errCode(body))
		}
	})

	t.Run("stats count every role", func(t *testing.T) {
		resp, stats := env.do(t, http.MethodGet, "/api/users/stats", admin, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("stats: status %d", resp.StatusCode)
		}
		total := stats["Customers"].(float64) + stats["Agents"].(float64) + stats["Admins"].(float64)
		users := env.listUsers(t, admin)
		if int(total) != len(users) {
			t.Errorf("stats total %v != user count %d", total, len(users))
		}
	})

	t.Run("deleting a missing user is not found", func(t *testing.T) {
		resp, body := env.do(t, http.MethodPost, "/api/delete_users", admin, map[string]any{"user_id": uuid.NewString()})
		if resp.StatusCode != http.StatusNotFound || errCode(body) != "NOT_FOUND" {
			t.Errorf("status %d code %q", resp.StatusCode, errCode(body))
		}
	})

	t.Run("user listing never exposes credentials", func(t *testing.T) {
		users := env.listUsers(t, admin)
		if len(users) == 0 {
			t.Fatal("no users listed")
		}
		for _, user := range users {
			for key := range user {
				if key == "password" || key == "passwordHash" || key == "password_hash" {
					t.Errorf("credential field %q leaked", key)
				}
			}
		}
	})
}

func TestDeleteUserLeavesTickets(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice", "a@x.com", "pw123", "")
	env.register(t, "admin", "admin@x.com", "pw123", domain.RoleAdmin)
	alice := env.login(t, "alice", "pw123")
	admin := env.login(t, "admin", "pw123")

	env.do(t, http.MethodPost, "/api/tickets", alice, map[string]any{"title": "keep me"})

	var aliceID string
	for _, user := range env.listUsers(t, admin) {
		if user["name"] == "alice" {
			aliceID, _ = user["id"].(string)
		}
	}
	resp, _ := env.do(t, http.MethodPost, "/api/delete_users", admin, map[string]any{"user_id": aliceID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	_, all := env.doList(t, http.MethodGet, "/api/all/tickets", admin)
	if len(all) != 1 || all[0]["customerName"] != "alice" {
		t.Errorf("tickets after delete = %v", all)
	}
}
