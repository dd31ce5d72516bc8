package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/events"
	"github.com/deskops/helpdesk/internal/repository"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// TicketService coordinates the ticket lifecycle: submission, assignment,
// technician updates, admin edits and deletion.
type TicketService struct {
	store       repository.Store
	assignment  *AssignmentService
	clock       clock.Clock
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	publicFeeds bool
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Assignment *AssignmentService
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	// PublicFeeds lets anonymous callers read the full ticket feed.
	PublicFeeds bool
}

// SubmitInput describes a new ticket. Status and assignee are never taken from the caller.
type SubmitInput struct {
	Title       string
	Description string
	Priority    string
}

// TicketListFilter narrows a role-scoped listing.
type TicketListFilter struct {
	Status      *domain.TicketStatus
	Priority    *string
	RequesterID *string
	Limit       int
	Offset      int
}

// TechnicianUpdateInput lists the fields an assignee may change.
type TechnicianUpdateInput struct {
	Description *string
	Status      *domain.TicketStatus
}

// AdminEditInput lists ticket fields an admin may overwrite. An empty
// AssigneeID unassigns the ticket.
type AdminEditInput struct {
	Title       *string
	Description *string
	Priority    *string
	Status      *domain.TicketStatus
	AssigneeID  *string
}

// TicketDetail is a ticket together with its audit trail.
type TicketDetail struct {
	Ticket  *domain.Ticket
	History []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	assignment := deps.Assignment
	if assignment == nil {
		assignment = NewAssignmentService(config.AssignmentConfig{}, nil)
	}
	return &TicketService{
		store:       deps.Store,
		assignment:  assignment,
		clock:       clk,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		publicFeeds: deps.PublicFeeds,
	}
}

// PublicFeeds reports whether the ticket feed is readable without a session.
func (s *TicketService) PublicFeeds() bool {
	return s.publicFeeds
}

// Submit files a ticket for the caller. The ticket always starts open and
// the assignee is picked in the same transaction as the insert.
func (s *TicketService) Submit(ctx context.Context, caller *domain.User, input SubmitInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	draft := &domain.Ticket{RequesterID: caller.ID}
	if err := auth.Authorize(caller, auth.ActionTicketCreate, auth.Target{Ticket: draft}); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewFieldError("title", "required")
	}

	now := s.clock.Now()
	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Priority:    strings.TrimSpace(input.Priority),
		Status:      domain.TicketStatusOpen,
		RequesterID: caller.ID,
		CreatedAt:   now,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		tech, err := s.assignment.PickTechnician(ctx, tx)
		if err != nil {
			return err
		}
		if tech != nil {
			ticket.AssigneeID = &tech.ID
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		return tx.History().Create(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangedByID: &caller.ID,
			ChangeType:  domain.ChangeTypeCreated,
			NewValue: map[string]any{
				"status":      ticket.Status,
				"assignee_id": ticket.AssigneeID,
			},
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", "")
	}

	s.logger.Info("ticket submitted",
		zap.String("ticket_id", ticket.ID),
		zap.String("requester_id", ticket.RequesterID),
		zap.Bool("assigned", ticket.AssigneeID != nil))
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Actor:     actorOf(caller),
		Timestamp: now,
		Payload: events.TicketCreatedPayload{
			Title:       ticket.Title,
			Priority:    ticket.Priority,
			RequesterID: ticket.RequesterID,
			AssigneeID:  ticket.AssigneeID,
		},
	})
	return ticket, nil
}

// Get returns a ticket the caller may read. Anonymous callers learn nothing
// about whether the ticket exists.
func (s *TicketService) Get(ctx context.Context, caller *domain.User, id string) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	ticket, err := s.store.Tickets().GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "ticket", id)
	}
	if err := auth.Authorize(caller, auth.ActionTicketRead, auth.Target{Ticket: ticket}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetWithHistory returns a readable ticket and its audit entries, oldest first.
func (s *TicketService) GetWithHistory(ctx context.Context, caller *domain.User, id string) (*TicketDetail, error) {
	ticket, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	history, err := s.store.History().ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return &TicketDetail{Ticket: ticket, History: history}, nil
}

// List returns the tickets visible to the caller: everything for admins,
// requested tickets for users, assigned tickets for technicians.
func (s *TicketService) List(ctx context.Context, caller *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := auth.Authorize(caller, auth.ActionTicketList, auth.Target{}); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "unknown status")
	}
	repoFilter := repository.TicketFilter{
		Status:      filter.Status,
		Priority:    filter.Priority,
		RequesterID: filter.RequesterID,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	if !scopeFilter(caller, &repoFilter) {
		return []domain.Ticket{}, nil
	}
	tickets, err := s.store.Tickets().List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

// Queue returns the technician's assigned tickets, or every ticket for admins.
func (s *TicketService) Queue(ctx context.Context, caller *domain.User) ([]domain.Ticket, error) {
	if err := auth.Authorize(caller, auth.ActionTicketQueue, auth.Target{}); err != nil {
		return nil, err
	}
	filter := repository.TicketFilter{}
	scopeFilter(caller, &filter)
	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

// Feed returns every ticket for the JSON feed and the CSV export. Without
// public feeds only admins may read it.
func (s *TicketService) Feed(ctx context.Context, caller *domain.User) ([]domain.Ticket, error) {
	if !s.publicFeeds {
		if err := auth.Authorize(caller, auth.ActionTicketExport, auth.Target{}); err != nil {
			return nil, err
		}
	}
	tickets, err := s.store.Tickets().List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return tickets, nil
}

// TechnicianUpdate changes description and status on a ticket assigned to
// the caller. Status may only move forward unless the caller is an admin.
// Non-admins get Forbidden for missing tickets too, so the answer never
// reveals whether another ticket exists.
func (s *TicketService) TechnicianUpdate(ctx context.Context, caller *domain.User, id string, input TechnicianUpdateInput) (*domain.Ticket, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}

	var (
		updated *domain.Ticket
		pending []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) && caller.Role != domain.RoleAdmin {
				return apperrors.NewForbidden()
			}
			return err
		}
		if err := auth.Authorize(caller, auth.ActionTicketWork, auth.Target{Ticket: ticket}); err != nil {
			return err
		}
		if input.Status != nil && !input.Status.Valid() {
			return apperrors.NewFieldError("status", "unknown status")
		}
		if input.Status != nil && caller.Role != domain.RoleAdmin && !ticket.Status.CanAdvanceTo(*input.Status) {
			return apperrors.NewValidationError("invalid status transition", map[string]any{
				"status": "cannot move from " + string(ticket.Status) + " to " + string(*input.Status),
			})
		}

		now := s.clock.Now()
		if input.Description != nil {
			description := strings.TrimSpace(*input.Description)
			if description != ticket.Description {
				if err := recordChange(ctx, tx, caller, ticket.ID, domain.ChangeTypeFields, now,
					map[string]any{"description": ticket.Description},
					map[string]any{"description": description}); err != nil {
					return err
				}
				ticket.Description = description
			}
		}
		if input.Status != nil && *input.Status != ticket.Status {
			old := ticket.Status
			applyStatus(ticket, *input.Status, now)
			if err := recordChange(ctx, tx, caller, ticket.ID, domain.ChangeTypeStatus, now,
				map[string]any{"status": old},
				map[string]any{"status": ticket.Status}); err != nil {
				return err
			}
			pending = append(pending, statusEvent(caller, ticket.ID, old, ticket.Status, now))
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", id)
	}

	s.logger.Info("ticket updated by assignee", zap.String("ticket_id", id), zap.String("user_id", caller.ID))
	for _, event := range pending {
		publish(ctx, s.dispatcher, s.logger, event)
	}
	return updated, nil
}

// AdminEdit overwrites any editable ticket field. A new assignee must be a technician.
func (s *TicketService) AdminEdit(ctx context.Context, caller *domain.User, id string, input AdminEditInput) (*domain.Ticket, error) {
	if err := auth.Authorize(caller, auth.ActionTicketEdit, auth.Target{}); err != nil {
		return nil, err
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, apperrors.NewFieldError("title", "required")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "unknown status")
	}

	var (
		updated *domain.Ticket
		pending []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := tx.Tickets().GetByID(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()

		oldFields := map[string]any{}
		newFields := map[string]any{}
		setField := func(name string, target *string, value *string) {
			if value == nil {
				return
			}
			next := strings.TrimSpace(*value)
			if next == *target {
				return
			}
			oldFields[name] = *target
			newFields[name] = next
			*target = next
		}
		setField("title", &ticket.Title, input.Title)
		setField("description", &ticket.Description, input.Description)
		setField("priority", &ticket.Priority, input.Priority)
		if len(newFields) > 0 {
			if err := recordChange(ctx, tx, caller, ticket.ID, domain.ChangeTypeFields, now, oldFields, newFields); err != nil {
				return err
			}
		}

		if input.Status != nil && *input.Status != ticket.Status {
			old := ticket.Status
			applyStatus(ticket, *input.Status, now)
			if err := recordChange(ctx, tx, caller, ticket.ID, domain.ChangeTypeStatus, now,
				map[string]any{"status": old},
				map[string]any{"status": ticket.Status}); err != nil {
				return err
			}
			pending = append(pending, statusEvent(caller, ticket.ID, old, ticket.Status, now))
		}

		if input.AssigneeID != nil {
			var next *string
			if assigneeID := strings.TrimSpace(*input.AssigneeID); assigneeID != "" {
				tech, err := s.assignment.ValidateAssignee(ctx, tx, assigneeID)
				if err != nil {
					return err
				}
				next = &tech.ID
			}
			if !sameAssignee(ticket.AssigneeID, next) {
				old := ticket.AssigneeID
				ticket.AssigneeID = next
				if err := recordChange(ctx, tx, caller, ticket.ID, domain.ChangeTypeAssignee, now,
					map[string]any{"assignee_id": old},
					map[string]any{"assignee_id": next}); err != nil {
					return err
				}
				pending = append(pending, events.Event{
					Type:      events.EventTicketAssigned,
					TicketID:  ticket.ID,
					Actor:     actorOf(caller),
					Timestamp: now,
					Payload:   events.TicketAssignedPayload{OldAssigneeID: old, AssigneeID: next},
				})
			}
		}

		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, "ticket", id)
	}

	s.logger.Info("ticket edited by admin", zap.String("ticket_id", id), zap.String("user_id", caller.ID))
	for _, event := range pending {
		publish(ctx, s.dispatcher, s.logger, event)
	}
	return updated, nil
}

// Delete removes a ticket and its history. Admin only.
func (s *TicketService) Delete(ctx context.Context, caller *domain.User, id string) error {
	if err := auth.Authorize(caller, auth.ActionTicketDelete, auth.Target{}); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		return tx.Tickets().Delete(ctx, id)
	})
	if err != nil {
		return mapStoreError(err, "ticket", id)
	}

	s.logger.Info("ticket deleted", zap.String("ticket_id", id), zap.String("user_id", caller.ID))
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventTicketDeleted,
		TicketID:  id,
		Actor:     actorOf(caller),
		Timestamp: s.clock.Now(),
	})
	return nil
}

// scopeFilter narrows filter to what the caller may see. It returns false
// when the requested filter can match nothing in the caller's scope.
func scopeFilter(caller *domain.User, filter *repository.TicketFilter) bool {
	switch caller.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		if filter.RequesterID != nil && *filter.RequesterID != caller.ID {
			return false
		}
		id := caller.ID
		filter.RequesterID = &id
		return true
	case domain.RoleTechnician:
		id := caller.ID
		filter.AssigneeID = &id
		return true
	}
	return false
}

// applyStatus moves the ticket to next and keeps ResolvedAt in step:
// stamped once on entering closed, cleared when the ticket is reopened.
func applyStatus(ticket *domain.Ticket, next domain.TicketStatus, now time.Time) {
	ticket.Status = next
	if next == domain.TicketStatusClosed {
		if ticket.ResolvedAt == nil {
			resolved := now
			ticket.ResolvedAt = &resolved
		}
		return
	}
	ticket.ResolvedAt = nil
}

func recordChange(ctx context.Context, tx repository.Store, caller *domain.User, ticketID string, change domain.TicketChangeType, at time.Time, oldValue, newValue map[string]any) error {
	var changedBy *string
	if caller != nil {
		id := caller.ID
		changedBy = &id
	}
	return tx.History().Create(ctx, &domain.TicketHistory{
		TicketID:    ticketID,
		ChangedByID: changedBy,
		ChangeType:  change,
		OldValue:    oldValue,
		NewValue:    newValue,
		CreatedAt:   at,
	})
}

func statusEvent(caller *domain.User, ticketID string, old, next domain.TicketStatus, at time.Time) events.Event {
	return events.Event{
		Type:      events.EventTicketStatusChanged,
		TicketID:  ticketID,
		Actor:     actorOf(caller),
		Timestamp: at,
		Payload:   events.TicketStatusChangedPayload{OldStatus: old, NewStatus: next},
	}
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
