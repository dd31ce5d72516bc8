package service

import (
	"context"
	"sort"
	"time"

	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/repository"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// Report aggregates the tickets visible to one caller.
type Report struct {
	GeneratedAt time.Time
	Total       int
	// ByStatus has an entry for every known status, zero counts included.
	ByStatus map[domain.TicketStatus]int
	// ByPriority skips tickets without a priority.
	ByPriority  map[string]int
	Technicians []TechnicianStat
}

// TechnicianStat summarizes closed tickets for one assignee.
type TechnicianStat struct {
	TechnicianID string
	Name         string
	Resolved     int
	AverageHours float64
	// Approximate is set when some closed ticket had no resolution time and
	// the report fell back to the current time.
	Approximate bool
}

// ReportService derives read-only aggregates from the ticket store.
type ReportService struct {
	store repository.Store
	clock clock.Clock
}

// NewReportService constructs the service.
func NewReportService(store repository.Store, clk clock.Clock) *ReportService {
	if clk == nil {
		clk = clock.Real()
	}
	return &ReportService{store: store, clock: clk}
}

// Summarize counts the caller's visible tickets by status and priority and
// averages resolution time per technician over closed, assigned tickets.
func (s *ReportService) Summarize(ctx context.Context, caller *domain.User) (*Report, error) {
	if err := auth.Authorize(caller, auth.ActionReportView, auth.Target{}); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{}
	scopeFilter(caller, &filter)
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	technicianRole := domain.RoleTechnician
	technicians, err := s.store.Users().List(ctx, repository.UserFilter{Role: &technicianRole})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	names := make(map[string]string, len(technicians))
	for _, tech := range technicians {
		names[tech.ID] = tech.Name
	}
	return summarize(tickets, names, s.clock.Now()), nil
}

func summarize(tickets []domain.Ticket, names map[string]string, now time.Time) *Report {
	report := &Report{
		GeneratedAt: now,
		Total:       len(tickets),
		ByStatus:    make(map[domain.TicketStatus]int, len(domain.TicketStatuses)),
		ByPriority:  make(map[string]int),
	}
	for _, status := range domain.TicketStatuses {
		report.ByStatus[status] = 0
	}

	type accumulator struct {
		count       int
		hours       float64
		approximate bool
	}
	perTech := make(map[string]*accumulator)

	for _, ticket := range tickets {
		report.ByStatus[ticket.Status]++
		if ticket.Priority != "" {
			report.ByPriority[ticket.Priority]++
		}
		if ticket.Status != domain.TicketStatusClosed || ticket.AssigneeID == nil {
			continue
		}
		acc, ok := perTech[*ticket.AssigneeID]
		if !ok {
			acc = &accumulator{}
			perTech[*ticket.AssigneeID] = acc
		}
		end := now
		if ticket.ResolvedAt != nil {
			end = *ticket.ResolvedAt
		} else {
			acc.approximate = true
		}
		acc.count++
		acc.hours += end.Sub(ticket.CreatedAt).Hours()
	}

	report.Technicians = make([]TechnicianStat, 0, len(perTech))
	for id, acc := range perTech {
		report.Technicians = append(report.Technicians, TechnicianStat{
			TechnicianID: id,
			Name:         names[id],
			Resolved:     acc.count,
			AverageHours: acc.hours / float64(acc.count),
			Approximate:  acc.approximate,
		})
	}
	sort.Slice(report.Technicians, func(i, j int) bool {
		a, b := report.Technicians[i], report.Technicians[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.TechnicianID < b.TechnicianID
	})
	return report
}
