package dto

import (
	"time"

	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
)

// SubmitTicketRequest payload. Status and assignee are not accepted.
type SubmitTicketRequest struct {
	Title       string `json:"title" form:"title"`
	Description string `json:"description" form:"description"`
	Priority    string `json:"priority" form:"priority"`
}

// TechnicianUpdateRequest payload for assignee updates.
type TechnicianUpdateRequest struct {
	Description *string `json:"description" form:"description"`
	Status      *string `json:"status" form:"status"`
}

// AdminTicketEditRequest payload. An empty assignee_id unassigns the ticket.
type AdminTicketEditRequest struct {
	Title       *string `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
	Priority    *string `json:"priority" form:"priority"`
	Status      *string `json:"status" form:"status"`
	AssigneeID  *string `json:"assignee_id" form:"assignee_id"`
}

// TicketListQuery captures dashboard filters.
type TicketListQuery struct {
	Status      string `query:"status"`
	Priority    string `query:"priority"`
	RequesterID string `query:"requester_id"`
	Limit       int    `query:"limit"`
	Offset      int    `query:"offset"`
}

// TicketResponse is the JSON form of a ticket.
type TicketResponse struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Priority    string              `json:"priority"`
	Status      domain.TicketStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	ResolvedAt  *time.Time          `json:"resolved_at"`
	RequesterID string              `json:"requester_id"`
	AssigneeID  *string             `json:"assignee_id"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value,omitempty"`
	NewValue    map[string]any          `json:"new_value,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// TicketDetailResponse is a ticket with its audit trail.
type TicketDetailResponse struct {
	TicketResponse
	History []TicketHistoryResponse `json:"history"`
}

// ToFilter converts the query into a service filter.
func (q TicketListQuery) ToFilter() service.TicketListFilter {
	filter := service.TicketListFilter{Limit: q.Limit, Offset: q.Offset}
	if q.Status != "" {
		status := domain.TicketStatus(q.Status)
		filter.Status = &status
	}
	if q.Priority != "" {
		priority := q.Priority
		filter.Priority = &priority
	}
	if q.RequesterID != "" {
		requester := q.RequesterID
		filter.RequesterID = &requester
	}
	return filter
}

// ToInput converts the request into service input. A blank status means unchanged.
func (r TechnicianUpdateRequest) ToInput() service.TechnicianUpdateInput {
	return service.TechnicianUpdateInput{
		Description: r.Description,
		Status:      statusPtr(r.Status),
	}
}

// ToInput converts the request into service input. A blank status means unchanged.
func (r AdminTicketEditRequest) ToInput() service.AdminEditInput {
	return service.AdminEditInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      statusPtr(r.Status),
		AssigneeID:  r.AssigneeID,
	}
}

func statusPtr(raw *string) *domain.TicketStatus {
	if raw == nil || *raw == "" {
		return nil
	}
	status := domain.TicketStatus(*raw)
	return &status
}

// NewTicketResponse maps a ticket to its JSON form.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ResolvedAt:  t.ResolvedAt,
		RequesterID: t.RequesterID,
		AssigneeID:  t.AssigneeID,
	}
}

// NewTicketResponses maps a listing.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	result := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		result = append(result, NewTicketResponse(t))
	}
	return result
}

// NewTicketDetailResponse maps a ticket and its history.
func NewTicketDetailResponse(detail *service.TicketDetail) TicketDetailResponse {
	history := make([]TicketHistoryResponse, 0, len(detail.History))
	for _, h := range detail.History {
		history = append(history, TicketHistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return TicketDetailResponse{TicketResponse: NewTicketResponse(*detail.Ticket), History: history}
}
