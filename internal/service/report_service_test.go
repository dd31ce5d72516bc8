package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/deskops/helpdesk/internal/domain"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

func TestPrinterScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.createUser(t, "root", domain.RoleAdmin)

	t1, err := f.users.AdminCreateUser(ctx, admin, NewUserInput{
		Name:     "T1",
		Email:    "t1@example.com",
		Password: testPassword,
		Role:     domain.RoleTechnician,
	})
	if err != nil {
		t.Fatalf("admin creates technician: %v", err)
	}
	u1, _, err := f.auth.Register(ctx, "U1", "u1@example.com", testPassword)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	ticket := f.submit(t, u1, "printer broken")
	if !ticket.AssignedTo(t1.ID) || ticket.Status != domain.TicketStatusOpen {
		t.Fatalf("got %+v, want open ticket assigned to T1", ticket)
	}

	f.clock.Advance(90 * time.Minute)
	if _, err := f.tickets.TechnicianUpdate(ctx, t1, ticket.ID, TechnicianUpdateInput{
		Status: ptr(domain.TicketStatusClosed),
	}); err != nil {
		t.Fatalf("technician closes: %v", err)
	}

	// Time passing after closure must not change the average.
	f.clock.Advance(48 * time.Hour)
	report, err := f.reports.Summarize(ctx, admin)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if report.ByStatus[domain.TicketStatusOpen] != 0 || report.ByStatus[domain.TicketStatusClosed] != 1 {
		t.Errorf("got status counts %v, want open 0 closed 1", report.ByStatus)
	}
	if len(report.Technicians) != 1 {
		t.Fatalf("got %d technician rows, want 1", len(report.Technicians))
	}
	stat := report.Technicians[0]
	if stat.TechnicianID != t1.ID || stat.Name != "T1" || stat.Resolved != 1 || stat.Approximate {
		t.Errorf("unexpected stat %+v", stat)
	}
	if math.Abs(stat.AverageHours-1.5) > 1e-9 {
		t.Errorf("got average %v hours, want 1.5", stat.AverageHours)
	}
}

func TestSummarizeScopesByRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tech := f.createUser(t, "tech", domain.RoleTechnician)
	ana := f.createUser(t, "ana", domain.RoleUser)
	bob := f.createUser(t, "bob", domain.RoleUser)
	f.submit(t, ana, "a1")
	f.submit(t, ana, "a2")
	f.submit(t, bob, "b1")

	tests := []struct {
		caller *domain.User
		want   int
	}{
		{ana, 2},
		{bob, 1},
		{tech, 3},
	}
	for _, tt := range tests {
		report, err := f.reports.Summarize(ctx, tt.caller)
		if err != nil {
			t.Fatalf("summarize for %s: %v", tt.caller.Name, err)
		}
		if report.Total != tt.want {
			t.Errorf("%s: got total %d, want %d", tt.caller.Name, report.Total, tt.want)
		}
	}

	_, err := f.reports.Summarize(ctx, nil)
	assertCode(t, err, apperrors.CodeUnauthenticated)
}

func TestSummarizeCounts(t *testing.T) {
	now := testStart.Add(10 * time.Hour)
	resolved := testStart.Add(4 * time.Hour)
	techA, techB := "tech-a", "tech-b"
	tickets := []domain.Ticket{
		{Status: domain.TicketStatusOpen, Priority: "high"},
		{Status: domain.TicketStatusInProgress, Priority: "high", AssigneeID: &techA},
		{Status: domain.TicketStatusClosed, Priority: "low", AssigneeID: &techA, CreatedAt: testStart, ResolvedAt: &resolved},
		// Closed before resolution times were recorded.
		{Status: domain.TicketStatusClosed, AssigneeID: &techB, CreatedAt: testStart},
		// Closed without an assignee is excluded from technician stats.
		{Status: domain.TicketStatusClosed, CreatedAt: testStart, ResolvedAt: &resolved},
	}
	report := summarize(tickets, map[string]string{techA: "Alice", techB: "Bob"}, now)

	wantStatus := map[domain.TicketStatus]int{
		domain.TicketStatusOpen:       1,
		domain.TicketStatusInProgress: 1,
		domain.TicketStatusClosed:     3,
	}
	for status, want := range wantStatus {
		if got := report.ByStatus[status]; got != want {
			t.Errorf("status %s: got %d, want %d", status, got, want)
		}
	}
	if len(report.ByPriority) != 2 || report.ByPriority["high"] != 2 || report.ByPriority["low"] != 1 {
		t.Errorf("got priorities %v, want high 2 low 1", report.ByPriority)
	}

	want := []TechnicianStat{
		{TechnicianID: techA, Name: "Alice", Resolved: 1, AverageHours: 4},
		{TechnicianID: techB, Name: "Bob", Resolved: 1, AverageHours: 10, Approximate: true},
	}
	if len(report.Technicians) != len(want) {
		t.Fatalf("got %+v, want %+v", report.Technicians, want)
	}
	for i := range want {
		if report.Technicians[i] != want[i] {
			t.Errorf("row %d: got %+v, want %+v", i, report.Technicians[i], want[i])
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	report := summarize(nil, nil, testStart)
	if len(report.ByStatus) != len(domain.TicketStatuses) {
		t.Errorf("got %v, want every status listed", report.ByStatus)
	}
	if report.Total != 0 || len(report.Technicians) != 0 || len(report.ByPriority) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}
