package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists statuses in lifecycle order.
var TicketStatuses = []TicketStatus{TicketStatusOpen, TicketStatusInProgress, TicketStatusClosed}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	return s.rank() >= 0
}

// CanAdvanceTo reports whether next is the same state or later in the lifecycle.
func (s TicketStatus) CanAdvanceTo(next TicketStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	return next.rank() >= s.rank()
}

func (s TicketStatus) rank() int {
	for i, candidate := range TicketStatuses {
		if candidate == s {
			return i
		}
	}
	return -1
}

// Ticket is an issue filed by a requester and worked by a technician.
//
// RequesterID is fixed at creation. AssigneeID, when set, references a technician.
// ResolvedAt is stamped when the ticket enters the closed state.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Priority    string
	Status      TicketStatus
	RequesterID string
	AssigneeID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ResolvedAt  *time.Time
}

// AssignedTo reports whether the ticket's assignee is userID.
func (t *Ticket) AssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}
