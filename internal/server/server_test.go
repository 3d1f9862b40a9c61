package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/model"
	"github.com/opsdesk/opsdesk/internal/service"
	"github.com/opsdesk/opsdesk/internal/ticket"
	"github.com/opsdesk/opsdesk/internal/upstream"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const (
	testJWTSecret = "test-secret-for-jwt-integration-tests"
	testPassword  = "supersecretpassword"
	testAdminName = "Test Admin"
)

// fakeUpstream stands in for the helpdesk API. It backs the dashboard
// fetcher, the ticket workflow, and the readiness probe.
type fakeUpstream struct {
	mu       sync.Mutex
	users    []model.User
	tickets  []model.Ticket
	fetchErr error
	pingErr  error
	updates  []int64
}

func (f *fakeUpstream) Users(ctx context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users, f.fetchErr
}

func (f *fakeUpstream) Tickets(ctx context.Context) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]model.Ticket, len(f.tickets))
	copy(out, f.tickets)
	return out, nil
}

func (f *fakeUpstream) UpdateTicket(ctx context.Context, id int64, upd upstream.TicketUpdate) (model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return model.Ticket{}, f.fetchErr
	}
	f.updates = append(f.updates, id)
	for i, t := range f.tickets {
		if t.ID == id {
			f.tickets[i].Status = upd.Status
			if upd.AdminResponse != nil {
				f.tickets[i].AdminResponse = *upd.AdminResponse
			}
			if upd.ResolvedAt != nil {
				f.tickets[i].ResolvedAt = upd.ResolvedAt.Format(time.RFC3339)
			}
			return f.tickets[i], nil
		}
	}
	return model.Ticket{}, errors.New("no such ticket upstream")
}

func (f *fakeUpstream) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

// testEnv holds all the shared state for integration tests.
type testEnv struct {
	server   *Server
	store    *config.Store
	authSvc  *service.AuthService
	upstream *fakeUpstream
}

// newTestEnv creates a fresh test environment with an in-memory config store,
// a fake upstream, and a fully wired Server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := config.NewStore("") // in-memory SQLite
	if err != nil {
		t.Fatalf("config.NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	authSvc := service.NewAuthService(store, testJWTSecret)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	fake := &fakeUpstream{
		users: []model.User{
			{ID: 1, Name: "Ada", Email: "ada@example.com",
				CreatedAt:    time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
				LastActiveAt: time.Now().UTC().Add(-time.Minute).Format(time.RFC3339)},
			{ID: 2, Name: "Grace", Email: "grace@example.com",
				CreatedAt: time.Now().UTC().AddDate(0, -2, 0).Format(time.RFC3339)},
		},
		tickets: []model.Ticket{
			{ID: 1, UserID: 1, Subject: "Login broken", Status: model.StatusNew, Category: model.CategoryTechnical},
			{ID: 2, UserID: 2, Subject: "Invoice question", Status: model.StatusOpen, Category: model.CategoryBilling},
			{ID: 3, UserID: 1, Subject: "Feature request", Status: model.StatusInProgress, Category: model.CategoryGeneral},
		},
	}

	source := metrics.NewMock()
	deps := Deps{
		Store:     store,
		AuthSvc:   authSvc,
		Dashboard: dashboard.New(fake, source, logger),
		Tickets:   ticket.NewController(fake, logger),
		Metrics:   source,
		Upstream:  fake,
	}

	srv := New(DefaultConfig(), deps, logger)

	return &testEnv{
		server:   srv,
		store:    store,
		authSvc:  authSvc,
		upstream: fake,
	}
}

// seedAdmin creates a default operator account and returns it.
func (e *testEnv) seedAdmin(t *testing.T) *model.Admin {
	t.Helper()
	admin := &model.Admin{
		Email:        "admin@example.com",
		PasswordHash: config.HashSecret(testPassword),
		Name:         testAdminName,
		IsActive:     true,
	}
	if err := e.store.CreateAdmin(context.Background(), admin); err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	return admin
}

// adminToken logs in as the default operator and returns the JWT token string.
func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	rr := e.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token string `json:"session_token"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Token == "" {
		t.Fatal("adminToken: got empty token from login")
	}
	return resp.Token
}

// seedAPIKey creates an active API key and returns the raw key.
func (e *testEnv) seedAPIKey(t *testing.T) string {
	t.Helper()
	rawKey := "odk_integrationtestkey1234567890"
	key := &model.APIKey{
		KeyHash:   config.HashSecret(rawKey),
		KeyPrefix: rawKey[:12],
		Label:     "integration-test",
		IsActive:  true,
	}
	if err := e.store.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("seedAPIKey: %v", err)
	}
	return rawKey
}

// do executes an HTTP request against the test server and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.server.ServeHTTP(rr, req)
	return rr
}

// doAuth executes an authenticated HTTP request using the operator JWT.
func (e *testEnv) doAuth(t *testing.T, method, path string, body io.Reader, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// doAPIKey executes an HTTP request authenticated with an API key.
func (e *testEnv) doAPIKey(t *testing.T, method, path string, body io.Reader, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, method, path, body, map[string]string{
		"X-API-Key": apiKey,
	})
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("jsonBody: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func assertContentType(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()
	got := rr.Header().Get("Content-Type")
	if got != want {
		t.Errorf("Content-Type = %q, want %q", got, want)
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

// ---------------------------------------------------------------------------
// Health check tests
// ---------------------------------------------------------------------------

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/healthz", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var resp map[string]string
	decodeJSON(t, rr, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %q, want %q", resp["status"], "ok")
	}
}

func TestReadyz(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
	if resp.Checks["upstream"] != "ok" {
		t.Errorf("upstream check = %q, want ok", resp.Checks["upstream"])
	}
}

func TestReadyzUpstreamDown(t *testing.T) {
	env := newTestEnv(t)
	env.upstream.pingErr = errors.New("connection refused")

	rr := env.do(t, "GET", "/readyz", nil, nil)
	assertStatus(t, rr, http.StatusServiceUnavailable)

	var resp struct {
		Status string `json:"status"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}

// ---------------------------------------------------------------------------
// Session tests
// ---------------------------------------------------------------------------

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": testPassword,
	})
	rr := env.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Token     string `json:"session_token"`
		TokenType string `json:"token_type"`
		ExpiresIn int    `json:"expires_in"`
		Email     string `json:"email"`
		Name      string `json:"name"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Token == "" {
		t.Error("expected non-empty session_token")
	}
	if resp.TokenType != "bearer" {
		t.Errorf("token_type = %q, want bearer", resp.TokenType)
	}
	if resp.ExpiresIn <= 0 {
		t.Errorf("expires_in = %d, want > 0", resp.ExpiresIn)
	}
	if resp.Name != testAdminName {
		t.Errorf("name = %q, want %q", resp.Name, testAdminName)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	body := jsonBody(t, map[string]string{
		"email":    "admin@example.com",
		"password": "wrongpassword",
	})
	rr := env.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestLogin_MissingFields(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	body := jsonBody(t, map[string]string{"email": "admin@example.com"})
	rr := env.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusBadRequest)

	body = jsonBody(t, map[string]string{"password": testPassword})
	rr = env.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "DELETE", "/api/v1/session", nil, nil)
	assertStatus(t, rr, http.StatusOK)

	var resp map[string]interface{}
	decodeJSON(t, rr, &resp)
	if resp["success"] != true {
		t.Errorf("success = %v, want true", resp["success"])
	}
}

func TestInvalidJSONBody(t *testing.T) {
	env := newTestEnv(t)

	body := bytes.NewBufferString("{invalid json")
	rr := env.do(t, "POST", "/api/v1/session", body, nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

// ---------------------------------------------------------------------------
// Authentication / authorization tests
// ---------------------------------------------------------------------------

func TestEndpoints_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/dashboard"},
		{"GET", "/api/v1/metrics/system"},
		{"GET", "/api/v1/metrics/activity"},
		{"GET", "/api/v1/tickets"},
		{"GET", "/api/v1/tickets/1"},
		{"PUT", "/api/v1/tickets/1/status"},
		{"GET", "/api/v1/system/admin"},
		{"POST", "/api/v1/system/admin"},
		{"GET", "/api/v1/system/api-key"},
		{"POST", "/api/v1/system/api-key"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			var body io.Reader
			if ep.method != "GET" {
				body = jsonBody(t, map[string]string{})
			}
			rr := env.do(t, ep.method, ep.path, body, nil)
			assertStatus(t, rr, http.StatusUnauthorized)
		})
	}
}

func TestEndpoints_ExpiredJWT(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	token, err := env.authSvc.IssueJWT(context.Background(), 1, "admin@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}

	rr := env.doAuth(t, "GET", "/api/v1/dashboard", nil, token)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestSystemEndpoints_APIKeyNotAdmin(t *testing.T) {
	env := newTestEnv(t)
	rawKey := env.seedAPIKey(t)

	// API keys can use triage endpoints but not account management.
	rr := env.doAPIKey(t, "GET", "/api/v1/system/admin", nil, rawKey)
	assertStatus(t, rr, http.StatusForbidden)
}

// ---------------------------------------------------------------------------
// Dashboard tests
// ---------------------------------------------------------------------------

func TestDashboardSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/v1/dashboard", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var snap struct {
		Stats struct {
			Total  int `json:"total"`
			Active int `json:"active"`
		} `json:"stats"`
		RecentUsers   []map[string]interface{} `json:"recent_users"`
		RecentTickets []map[string]interface{} `json:"recent_tickets"`
		TotalTickets  int                      `json:"total_tickets"`
		System        []map[string]interface{} `json:"system"`
		Activity      []map[string]interface{} `json:"activity"`
	}
	decodeJSON(t, rr, &snap)

	if snap.Stats.Total != 2 {
		t.Errorf("stats.total = %d, want 2", snap.Stats.Total)
	}
	if snap.Stats.Active != 1 {
		t.Errorf("stats.active = %d, want 1", snap.Stats.Active)
	}
	if len(snap.RecentUsers) != 1 {
		t.Errorf("recent_users = %d, want 1", len(snap.RecentUsers))
	}
	if snap.TotalTickets != 3 {
		t.Errorf("total_tickets = %d, want 3", snap.TotalTickets)
	}
	if len(snap.System) != 24 || len(snap.Activity) != 24 {
		t.Errorf("chart series = %d/%d buckets, want 24/24", len(snap.System), len(snap.Activity))
	}
}

func TestDashboard_UpstreamFailureIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)
	env.upstream.fetchErr = errors.New("upstream down")

	rr := env.doAuth(t, "GET", "/api/v1/dashboard", nil, token)
	assertStatus(t, rr, http.StatusBadGateway)

	var resp struct {
		Error struct {
			Code      int  `json:"code"`
			Retryable bool `json:"retryable"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &resp)
	if !resp.Error.Retryable {
		t.Error("expected retryable error for upstream failure")
	}
}

func TestMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rawKey := env.seedAPIKey(t)

	for _, path := range []string{"/api/v1/metrics/system", "/api/v1/metrics/activity"} {
		rr := env.doAPIKey(t, "GET", path, nil, rawKey)
		assertStatus(t, rr, http.StatusOK)

		var resp struct {
			Series []map[string]interface{} `json:"series"`
		}
		decodeJSON(t, rr, &resp)
		if len(resp.Series) != 24 {
			t.Errorf("%s: series = %d buckets, want 24", path, len(resp.Series))
		}
	}
}

// ---------------------------------------------------------------------------
// Ticket triage tests
// ---------------------------------------------------------------------------

func TestListTickets(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/v1/tickets", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Resource []struct {
			ID     int64  `json:"id"`
			Status string `json:"status"`
		} `json:"resource"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Meta.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Meta.Count)
	}
	if resp.Resource[2].Status != "in-progress" {
		t.Errorf("status = %q, want display form in-progress", resp.Resource[2].Status)
	}
}

func TestListTickets_SeesTicketsCreatedAfterStartup(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/v1/tickets", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// A ticket filed after the first load must appear on the next request,
	// and its detail endpoint must not 404.
	env.upstream.mu.Lock()
	env.upstream.tickets = append(env.upstream.tickets, model.Ticket{
		ID: 4, UserID: 2, Subject: "Cannot export report", Status: model.StatusOpen,
	})
	env.upstream.mu.Unlock()

	var resp struct {
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	rr = env.doAuth(t, "GET", "/api/v1/tickets", nil, token)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &resp)
	if resp.Meta.Count != 4 {
		t.Errorf("count = %d, want 4 after upstream gained a ticket", resp.Meta.Count)
	}

	rr = env.doAuth(t, "GET", "/api/v1/tickets/4", nil, token)
	assertStatus(t, rr, http.StatusOK)
}

func TestGetTicket_AutoOpensNew(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/v1/tickets/1", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Ticket struct {
			Status string `json:"status"`
		} `json:"ticket"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Ticket.Status != "open" {
		t.Errorf("status = %q, want open (viewing a new ticket opens it)", resp.Ticket.Status)
	}

	env.upstream.mu.Lock()
	updates := len(env.upstream.updates)
	env.upstream.mu.Unlock()
	if updates != 1 {
		t.Errorf("upstream updates = %d, want 1", updates)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "GET", "/api/v1/tickets/999", nil, token)
	assertStatus(t, rr, http.StatusNotFound)
}

func TestUpdateTicketStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Ticket 3 is in_progress; resolve it with a response.
	body := jsonBody(t, map[string]interface{}{
		"action":         "resolve",
		"admin_response": "Shipped in v2.1",
	})
	rr := env.doAuth(t, "PUT", "/api/v1/tickets/3/status", body, token)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Ticket struct {
			Status        string `json:"status"`
			AdminResponse string `json:"admin_response"`
			ResolvedAt    string `json:"resolved_at"`
		} `json:"ticket"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Ticket.Status != "resolved" {
		t.Errorf("status = %q, want resolved", resp.Ticket.Status)
	}
	if resp.Ticket.AdminResponse != "Shipped in v2.1" {
		t.Errorf("admin_response = %q", resp.Ticket.AdminResponse)
	}
	if resp.Ticket.ResolvedAt == "" {
		t.Error("expected resolved_at to be stamped")
	}

	// Close follows resolve.
	body = jsonBody(t, map[string]string{"action": "close"})
	rr = env.doAuth(t, "PUT", "/api/v1/tickets/3/status", body, token)
	assertStatus(t, rr, http.StatusOK)
}

func TestUpdateTicketStatus_Illegal(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Ticket 2 is open; closing it skips the lifecycle.
	body := jsonBody(t, map[string]string{"action": "close"})
	rr := env.doAuth(t, "PUT", "/api/v1/tickets/2/status", body, token)
	assertStatus(t, rr, http.StatusConflict)

	env.upstream.mu.Lock()
	updates := len(env.upstream.updates)
	env.upstream.mu.Unlock()
	if updates != 0 {
		t.Errorf("upstream updates = %d, want 0 for an illegal transition", updates)
	}
}

func TestUpdateTicketStatus_UnknownAction(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	body := jsonBody(t, map[string]string{"action": "escalate"})
	rr := env.doAuth(t, "PUT", "/api/v1/tickets/2/status", body, token)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestUpdateTicketStatus_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Load the cache first, then fail the upstream.
	rr := env.doAuth(t, "GET", "/api/v1/tickets", nil, token)
	assertStatus(t, rr, http.StatusOK)
	env.upstream.fetchErr = errors.New("upstream down")

	body := jsonBody(t, map[string]string{"action": "start"})
	rr = env.doAuth(t, "PUT", "/api/v1/tickets/2/status", body, token)
	assertStatus(t, rr, http.StatusBadGateway)

	// Local state must be untouched; the ticket still shows open.
	env.upstream.fetchErr = nil
	rr = env.doAuth(t, "GET", "/api/v1/tickets/2", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var resp struct {
		Ticket struct {
			Status string `json:"status"`
		} `json:"ticket"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Ticket.Status != "open" {
		t.Errorf("status = %q, want open after failed update", resp.Ticket.Status)
	}
}

// ---------------------------------------------------------------------------
// Operator account management tests
// ---------------------------------------------------------------------------

func TestAdminManagement(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// List includes the seed admin.
	rr := env.doAuth(t, "GET", "/api/v1/system/admin", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var listResp struct {
		Resource []map[string]interface{} `json:"resource"`
	}
	decodeJSON(t, rr, &listResp)
	if len(listResp.Resource) != 1 {
		t.Fatalf("list count = %d, want 1", len(listResp.Resource))
	}

	// Create a second operator.
	createBody := jsonBody(t, map[string]interface{}{
		"email":    "admin2@example.com",
		"password": "anothersecretpassword",
		"name":     "Second Admin",
	})
	rr = env.doAuth(t, "POST", "/api/v1/system/admin", createBody, token)
	assertStatus(t, rr, http.StatusCreated)

	// The new operator can log in.
	loginBody := jsonBody(t, map[string]string{
		"email":    "admin2@example.com",
		"password": "anothersecretpassword",
	})
	rr = env.do(t, "POST", "/api/v1/session", loginBody, nil)
	assertStatus(t, rr, http.StatusOK)
}

func TestCreateAdmin_Validation(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing email", map[string]interface{}{"password": "longpassword123"}},
		{"missing password", map[string]interface{}{"email": "test@test.com"}},
		{"short password", map[string]interface{}{"email": "test@test.com", "password": "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.doAuth(t, "POST", "/api/v1/system/admin", jsonBody(t, tt.body), token)
			assertStatus(t, rr, http.StatusBadRequest)
		})
	}
}

func TestCreateAdmin_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	body := jsonBody(t, map[string]interface{}{
		"email":    "admin@example.com",
		"password": "duplicatepassword",
		"name":     "Duplicate",
	})
	rr := env.doAuth(t, "POST", "/api/v1/system/admin", body, token)
	assertStatus(t, rr, http.StatusConflict)
}

// ---------------------------------------------------------------------------
// API key management tests
// ---------------------------------------------------------------------------

func TestAPIKeyLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Create.
	createBody := jsonBody(t, map[string]interface{}{"label": "reporting"})
	rr := env.doAuth(t, "POST", "/api/v1/system/api-key", createBody, token)
	assertStatus(t, rr, http.StatusCreated)

	var keyResp struct {
		ID        int64  `json:"id"`
		Key       string `json:"api_key"`
		KeyPrefix string `json:"key_prefix"`
		Label     string `json:"label"`
	}
	decodeJSON(t, rr, &keyResp)
	if keyResp.Key == "" {
		t.Fatal("expected non-empty api_key")
	}
	if keyResp.Label != "reporting" {
		t.Errorf("label = %q", keyResp.Label)
	}

	// The raw key works against a triage endpoint.
	rr = env.doAPIKey(t, "GET", "/api/v1/tickets", nil, keyResp.Key)
	assertStatus(t, rr, http.StatusOK)

	// List.
	rr = env.doAuth(t, "GET", "/api/v1/system/api-key", nil, token)
	assertStatus(t, rr, http.StatusOK)

	var listResp struct {
		Resource []map[string]interface{} `json:"resource"`
	}
	decodeJSON(t, rr, &listResp)
	if len(listResp.Resource) != 1 {
		t.Fatalf("list count = %d, want 1", len(listResp.Resource))
	}

	// Revoke, then the key stops working.
	rr = env.doAuth(t, "DELETE", fmt.Sprintf("/api/v1/system/api-key/%d", keyResp.ID), nil, token)
	assertStatus(t, rr, http.StatusOK)

	rr = env.doAPIKey(t, "GET", "/api/v1/tickets", nil, keyResp.Key)
	assertStatus(t, rr, http.StatusUnauthorized)
}

func TestCreateAPIKey_MissingLabel(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "POST", "/api/v1/system/api-key", jsonBody(t, map[string]string{}), token)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestRevokeAPIKey_NotFound(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	rr := env.doAuth(t, "DELETE", "/api/v1/system/api-key/99999", nil, token)
	assertStatus(t, rr, http.StatusNotFound)
}

// ---------------------------------------------------------------------------
// OpenAPI document and embedded page
// ---------------------------------------------------------------------------

func TestOpenAPISpec(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", nil, nil)
	assertStatus(t, rr, http.StatusOK)
	assertContentType(t, rr, "application/json")

	var spec map[string]interface{}
	decodeJSON(t, rr, &spec)

	if spec["openapi"] != "3.1.0" {
		t.Errorf("openapi version = %v, want 3.1.0", spec["openapi"])
	}
	info, ok := spec["info"].(map[string]interface{})
	if !ok {
		t.Fatal("expected info to be an object")
	}
	if info["title"] != "Opsdesk API" {
		t.Errorf("info.title = %v, want Opsdesk API", info["title"])
	}
}

func TestAdminPage(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/admin", "/"} {
		rr := env.do(t, "GET", path, nil, nil)
		assertStatus(t, rr, http.StatusOK)
		assertContentType(t, rr, "text/html; charset=utf-8")
	}
}

// ---------------------------------------------------------------------------
// CORS headers test
// ---------------------------------------------------------------------------

func TestCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "OPTIONS", "/healthz", nil, map[string]string{
		"Origin":                         "http://localhost:3000",
		"Access-Control-Request-Method":  "GET",
		"Access-Control-Request-Headers": "Authorization,Content-Type,X-API-Key",
	})

	if rr.Code < 200 || rr.Code >= 300 {
		t.Errorf("CORS preflight status = %d, want 2xx", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected Access-Control-Allow-Origin header")
	}
}

// ---------------------------------------------------------------------------
// Full workflow: login, view ticket, triage it to closed
// ---------------------------------------------------------------------------

func TestFullTriageWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)
	token := env.adminToken(t)

	// Viewing ticket 1 (new) opens it.
	rr := env.doAuth(t, "GET", "/api/v1/tickets/1", nil, token)
	assertStatus(t, rr, http.StatusOK)

	// open → in_progress → resolved → closed.
	steps := []string{"start", "resolve", "close"}
	for _, action := range steps {
		body := jsonBody(t, map[string]string{"action": action})
		rr = env.doAuth(t, "PUT", "/api/v1/tickets/1/status", body, token)
		assertStatus(t, rr, http.StatusOK)
	}

	var resp struct {
		Ticket struct {
			Status string `json:"status"`
		} `json:"ticket"`
	}
	rr = env.doAuth(t, "GET", "/api/v1/tickets/1", nil, token)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &resp)
	if resp.Ticket.Status != "closed" {
		t.Errorf("final status = %q, want closed", resp.Ticket.Status)
	}

	// A closed ticket is terminal.
	body := jsonBody(t, map[string]string{"action": "start"})
	rr = env.doAuth(t, "PUT", "/api/v1/tickets/1/status", body, token)
	assertStatus(t, rr, http.StatusConflict)
}

// ---------------------------------------------------------------------------
// Error response format test
// ---------------------------------------------------------------------------

func TestErrorResponseFormat(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/v1/dashboard", nil, nil)
	assertStatus(t, rr, http.StatusUnauthorized)

	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeJSON(t, rr, &errResp)

	if errResp.Error.Code != 401 {
		t.Errorf("error.code = %d, want 401", errResp.Error.Code)
	}
	if errResp.Error.Message == "" {
		t.Error("expected non-empty error.message")
	}
}
