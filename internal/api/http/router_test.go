package http

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskops/helpdesk/internal/api/http/handlers"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/export"
	"github.com/deskops/helpdesk/internal/observability"
	"github.com/deskops/helpdesk/internal/repository"
	"github.com/deskops/helpdesk/internal/service"
	"github.com/deskops/helpdesk/internal/session"
)

const testPassword = "correct-horse"

type testServer struct {
	app   *fiber.App
	users *service.UserService
}

func newTestServer(t *testing.T, publicFeeds bool) *testServer {
	t.Helper()
	authCfg := config.AuthConfig{JWTSecret: "router-secret", SessionTTLMinutes: 30, BcryptCost: bcrypt.MinCost}
	store := repository.NewMemoryStore(nil)
	sessions := session.NewMemoryStore(clock.Real())

	users := service.NewUserService(authCfg, service.UserDependencies{Store: store})
	authService := service.NewAuthService(authCfg, service.AuthDependencies{Users: users, Sessions: sessions})
	tickets := service.NewTicketService(service.TicketDependencies{
		Store:       store,
		Assignment:  service.NewAssignmentService(config.AssignmentConfig{Strategy: config.AssignmentLeastLoaded, Seed: 7}, nil),
		PublicFeeds: publicFeeds,
	})
	metrics := observability.NewMetrics()

	app := NewApp(ServerOptions{AppName: "helpdesk-test", Metrics: metrics}, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-test", "test", metrics),
		Auth:           handlers.NewAuthHandler(authService, false),
		Tickets:        handlers.NewTicketsHandler(tickets, nil),
		Technician:     handlers.NewTechnicianHandler(tickets),
		AdminTickets:   handlers.NewAdminTicketsHandler(tickets, users),
		Users:          handlers.NewUsersHandler(users),
		Profile:        handlers.NewProfileHandler(users),
		Stats:          handlers.NewStatsHandler(service.NewReportService(store, nil)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), sessions, store.Users()),
	})
	return &testServer{app: app, users: users}
}

func (s *testServer) createUser(t *testing.T, name string, role domain.Role) *domain.User {
	t.Helper()
	user, err := s.users.CreateUser(context.Background(), service.NewUserInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func (s *testServer) do(t *testing.T, req *stdhttp.Request) *stdhttp.Response {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	return resp
}

func (s *testServer) login(t *testing.T, name string) string {
	t.Helper()
	resp := s.do(t, jsonRequest(stdhttp.MethodPost, "/login", "", map[string]string{
		"email":    name + "@example.com",
		"password": testPassword,
	}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login %s: got status %d, want 200", name, resp.StatusCode)
	}
	var body struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	if body.Data.Token == "" {
		t.Fatalf("login %s: empty token", name)
	}
	return body.Data.Token
}

func jsonRequest(method, target, token string, payload any) *stdhttp.Request {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return req
}

func decode(t *testing.T, resp *stdhttp.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

type ticketItem struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Status      domain.TicketStatus `json:"status"`
	RequesterID string              `json:"requester_id"`
	AssigneeID  *string             `json:"assignee_id"`
}

func (s *testServer) submit(t *testing.T, token, title string) ticketItem {
	t.Helper()
	resp := s.do(t, jsonRequest(stdhttp.MethodPost, "/tickets", token, map[string]string{
		"title":       title,
		"description": "details for " + title,
		"priority":    "high",
	}))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("submit %q: got status %d, want 201", title, resp.StatusCode)
	}
	var body struct {
		Data ticketItem `json:"data"`
	}
	decode(t, resp, &body)
	return body.Data
}

func errorCode(t *testing.T, resp *stdhttp.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	return body.Error.Code
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, true)
	resp := srv.do(t, httptest.NewRequest(stdhttp.MethodGet, "/health/live", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, true)

	resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/dashboard", "", nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("json: got status %d, want 401", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "UNAUTHENTICATED" {
		t.Fatalf("json: got code %q, want UNAUTHENTICATED", code)
	}

	req := httptest.NewRequest(stdhttp.MethodGet, "/dashboard", nil)
	req.Header.Set(fiber.HeaderAccept, "text/html,application/xhtml+xml")
	resp = srv.do(t, req)
	if resp.StatusCode != fiber.StatusSeeOther {
		t.Fatalf("html: got status %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "/login" {
		t.Fatalf("html: got location %q, want /login", loc)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodGet, "/dashboard", "not-a-token", nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad token: got status %d, want 401", resp.StatusCode)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)

	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, "/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "INVALID_CREDENTIALS" {
		t.Fatalf("got code %q, want INVALID_CREDENTIALS", code)
	}
}

func TestFormLoginSetsCookieAndRedirects(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)

	form := url.Values{"email": {"alice@example.com"}, "password": {testPassword}}
	req := httptest.NewRequest(stdhttp.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMETextHTML)
	resp := srv.do(t, req)
	if resp.StatusCode != fiber.StatusSeeOther {
		t.Fatalf("got status %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get(fiber.HeaderLocation); loc != "/dashboard" {
		t.Fatalf("got location %q, want /dashboard", loc)
	}

	var sessionCookie *stdhttp.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == auth.SessionCookie {
			sessionCookie = cookie
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("expected session cookie")
	}
	if !sessionCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	dash := jsonRequest(stdhttp.MethodGet, "/dashboard", "", nil)
	dash.AddCookie(&stdhttp.Cookie{Name: auth.SessionCookie, Value: sessionCookie.Value})
	if resp := srv.do(t, dash); resp.StatusCode != fiber.StatusOK {
		t.Fatalf("dashboard with cookie: got status %d, want 200", resp.StatusCode)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)
	token := srv.login(t, "alice")

	resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/logout", token, nil))
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("logout: got status %d, want 204", resp.StatusCode)
	}
	resp = srv.do(t, jsonRequest(stdhttp.MethodGet, "/dashboard", token, nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("after logout: got status %d, want 401", resp.StatusCode)
	}
}

func TestRegisterCreatesPlainUser(t *testing.T) {
	srv := newTestServer(t, true)
	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, "/register", "", map[string]string{
		"name":     "Carol",
		"email":    "Carol@Example.com",
		"password": testPassword,
		"role":     "admin",
	}))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("got status %d, want 201", resp.StatusCode)
	}
	var body struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				Email string      `json:"email"`
				Role  domain.Role `json:"role"`
			} `json:"user"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	if body.Data.User.Role != domain.RoleUser {
		t.Fatalf("got role %q, want user", body.Data.User.Role)
	}
	if body.Data.User.Email != "carol@example.com" {
		t.Fatalf("got email %q, want normalized", body.Data.User.Email)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, "/register", "", map[string]string{
		"name":     "Carol again",
		"email":    "carol@example.com",
		"password": testPassword,
	}))
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("duplicate: got status %d, want 409", resp.StatusCode)
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	srv := newTestServer(t, true)
	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, "/register", "", map[string]string{
		"name":     "Carol",
		"email":    "carol@example.com",
		"password": strings.Repeat("p", 80),
	}))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "VALIDATION_FAILED" {
		t.Fatalf("got code %q, want VALIDATION_FAILED", code)
	}
}

func TestSubmitAssignsTechnicianAndScopesDashboard(t *testing.T) {
	srv := newTestServer(t, true)
	tech := srv.createUser(t, "tess", domain.RoleTechnician)
	alice := srv.createUser(t, "alice", domain.RoleUser)
	srv.createUser(t, "bob", domain.RoleUser)

	aliceToken := srv.login(t, "alice")
	bobToken := srv.login(t, "bob")

	created := srv.submit(t, aliceToken, "Printer jammed")
	if created.Status != domain.TicketStatusOpen {
		t.Fatalf("got status %q, want open", created.Status)
	}
	if created.RequesterID != alice.ID {
		t.Fatalf("got requester %q, want %q", created.RequesterID, alice.ID)
	}
	if created.AssigneeID == nil || *created.AssigneeID != tech.ID {
		t.Fatalf("got assignee %v, want %s", created.AssigneeID, tech.ID)
	}
	srv.submit(t, bobToken, "VPN down")

	resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/dashboard", aliceToken, nil))
	var body struct {
		Data []ticketItem `json:"data"`
	}
	decode(t, resp, &body)
	if len(body.Data) != 1 || body.Data[0].ID != created.ID {
		t.Fatalf("alice dashboard: got %+v, want only her ticket", body.Data)
	}

	techToken := srv.login(t, "tess")
	resp = srv.do(t, jsonRequest(stdhttp.MethodGet, "/technicien/tickets", techToken, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("queue: got status %d, want 200", resp.StatusCode)
	}
	decode(t, resp, &body)
	if len(body.Data) != 2 {
		t.Fatalf("queue: got %d tickets, want 2", len(body.Data))
	}
}

func TestSubmitValidatesTitle(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)
	token := srv.login(t, "alice")

	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, "/tickets", token, map[string]string{
		"title":       "   ",
		"description": "no title",
		"priority":    "low",
	}))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("got status %d, want 400", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "VALIDATION_FAILED" {
		t.Fatalf("got code %q, want VALIDATION_FAILED", code)
	}
}

func TestTechnicianUpdate(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "tess", domain.RoleTechnician)
	srv.createUser(t, "alice", domain.RoleUser)
	aliceToken := srv.login(t, "alice")
	techToken := srv.login(t, "tess")

	ticket := srv.submit(t, aliceToken, "Printer jammed")
	target := "/technicien/tickets/" + ticket.ID + "/update"

	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, target, aliceToken, map[string]string{"status": "closed"}))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("requester: got status %d, want 403", resp.StatusCode)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, target, techToken, map[string]string{"status": "in_progress"}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("technician: got status %d, want 200", resp.StatusCode)
	}
	var body struct {
		Data ticketItem `json:"data"`
	}
	decode(t, resp, &body)
	if body.Data.Status != domain.TicketStatusInProgress {
		t.Fatalf("got status %q, want in_progress", body.Data.Status)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, target, techToken, map[string]string{"status": "open"}))
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("backwards move: got status %d, want 400", resp.StatusCode)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, "/technicien/tickets/missing/update", techToken, map[string]string{"status": "closed"}))
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("missing ticket: got status %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "FORBIDDEN" {
		t.Fatalf("missing ticket: got code %q, want FORBIDDEN", code)
	}
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)
	srv.createUser(t, "tess", domain.RoleTechnician)

	for _, name := range []string{"alice", "tess"} {
		token := srv.login(t, name)
		resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/admin/users", token, nil))
		if resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("%s: got status %d, want 403", name, resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "FORBIDDEN" {
			t.Fatalf("%s: got code %q, want FORBIDDEN", name, code)
		}
	}
}

func TestAdminManagesUsersAndTickets(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "root", domain.RoleAdmin)
	srv.createUser(t, "alice", domain.RoleUser)
	adminToken := srv.login(t, "root")
	aliceToken := srv.login(t, "alice")

	resp := srv.do(t, jsonRequest(stdhttp.MethodPost, "/admin/users/add", adminToken, map[string]string{
		"name":     "Tess",
		"email":    "tess@example.com",
		"password": testPassword,
		"role":     "technician",
	}))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("add user: got status %d, want 201", resp.StatusCode)
	}
	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decode(t, resp, &created)

	ticket := srv.submit(t, aliceToken, "Printer jammed")
	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, "/admin/tickets/edit/"+ticket.ID, adminToken, map[string]string{
		"status":      "closed",
		"assignee_id": created.Data.ID,
	}))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("edit ticket: got status %d, want 200", resp.StatusCode)
	}
	var edited struct {
		Data ticketItem `json:"data"`
	}
	decode(t, resp, &edited)
	if edited.Data.Status != domain.TicketStatusClosed {
		t.Fatalf("got status %q, want closed", edited.Data.Status)
	}

	resp = srv.do(t, jsonRequest(stdhttp.MethodPost, "/admin/tickets/delete/"+ticket.ID, adminToken, nil))
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("delete ticket: got status %d, want 204", resp.StatusCode)
	}
	resp = srv.do(t, jsonRequest(stdhttp.MethodGet, "/admin/tickets/edit/"+ticket.ID, adminToken, nil))
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("deleted ticket: got status %d, want 404", resp.StatusCode)
	}
}

func TestFeedAndExport(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)
	token := srv.login(t, "alice")
	first := srv.submit(t, token, "Printer jammed")
	srv.submit(t, token, "VPN, again")

	resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/tickets", "", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("feed: got status %d, want 200", resp.StatusCode)
	}
	var feed struct {
		Data []ticketItem `json:"data"`
	}
	decode(t, resp, &feed)
	if len(feed.Data) != 2 {
		t.Fatalf("feed: got %d tickets, want 2", len(feed.Data))
	}

	resp = srv.do(t, httptest.NewRequest(stdhttp.MethodGet, "/export", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("export: got status %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get(fiber.HeaderContentType); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("export: got content type %q, want text/csv", ct)
	}
	if cd := resp.Header.Get(fiber.HeaderContentDisposition); !strings.Contains(cd, "tickets.csv") {
		t.Fatalf("export: got disposition %q", cd)
	}
	defer resp.Body.Close()
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("export: got %d rows, want header plus 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(export.CSVHeader, ",") {
		t.Fatalf("export header: got %v, want %v", rows[0], export.CSVHeader)
	}
	found := false
	for _, row := range rows[1:] {
		if row[0] == first.ID {
			found = true
			if row[1] != "Printer jammed" || row[3] != "high" || row[4] != "open" {
				t.Fatalf("export row: got %v", row)
			}
			if row[7] != "" {
				t.Fatalf("unassigned ticket exported assignee %q", row[7])
			}
		}
	}
	if !found {
		t.Fatalf("export rows %v missing ticket %s", rows, first.ID)
	}
}

func TestPrivateFeedsRequireAdmin(t *testing.T) {
	srv := newTestServer(t, false)
	srv.createUser(t, "root", domain.RoleAdmin)
	srv.createUser(t, "alice", domain.RoleUser)

	for _, target := range []string{"/tickets", "/export"} {
		resp := srv.do(t, jsonRequest(stdhttp.MethodGet, target, "", nil))
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Fatalf("anonymous %s: got status %d, want 401", target, resp.StatusCode)
		}
		resp = srv.do(t, jsonRequest(stdhttp.MethodGet, target, srv.login(t, "alice"), nil))
		if resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("user %s: got status %d, want 403", target, resp.StatusCode)
		}
		resp = srv.do(t, jsonRequest(stdhttp.MethodGet, target, srv.login(t, "root"), nil))
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("admin %s: got status %d, want 200", target, resp.StatusCode)
		}
	}
}

func TestStatsScopedByRole(t *testing.T) {
	srv := newTestServer(t, true)
	srv.createUser(t, "alice", domain.RoleUser)
	srv.createUser(t, "bob", domain.RoleUser)
	aliceToken := srv.login(t, "alice")
	srv.submit(t, aliceToken, "Printer jammed")
	srv.submit(t, srv.login(t, "bob"), "VPN down")

	resp := srv.do(t, jsonRequest(stdhttp.MethodGet, "/stats", aliceToken, nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("got status %d, want 200", resp.StatusCode)
	}
	var body struct {
		Data struct {
			Total    int            `json:"total"`
			ByStatus map[string]int `json:"by_status"`
		} `json:"data"`
	}
	decode(t, resp, &body)
	if body.Data.Total != 1 {
		t.Fatalf("got total %d, want 1", body.Data.Total)
	}
	if body.Data.ByStatus["open"] != 1 || body.Data.ByStatus["closed"] != 0 {
		t.Fatalf("got by_status %v", body.Data.ByStatus)
	}
}
