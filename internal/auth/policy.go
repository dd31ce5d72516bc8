package auth

import (
	"github.com/deskops/helpdesk/internal/domain"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionTicketCreate Action = "ticket:create"
	ActionTicketList   Action = "ticket:list"
	ActionTicketRead   Action = "ticket:read"
	// ActionTicketWork covers description and status updates by the assignee.
	ActionTicketWork Action = "ticket:work"
	// ActionTicketQueue is viewing the technician work queue.
	ActionTicketQueue Action = "ticket:queue"
	// ActionTicketEdit covers every ticket field, including title, priority and assignee.
	ActionTicketEdit   Action = "ticket:edit"
	ActionTicketDelete Action = "ticket:delete"
	ActionTicketExport Action = "ticket:export"
	ActionReportView   Action = "report:view"
	ActionUserList     Action = "user:list"
	ActionUserCreate   Action = "user:create"
	ActionUserRead     Action = "user:read"
	ActionUserUpdate   Action = "user:update"
	ActionUserDelete   Action = "user:delete"
	// ActionProfileUpdate is a caller editing their own name, email or password.
	ActionProfileUpdate Action = "profile:update"
)

// Target is the resource an action applies to. Either field may be nil.
type Target struct {
	Ticket *domain.Ticket
	User   *domain.User
}

// rule decides a single (role, action) cell given the caller id and target.
type rule func(callerID string, target Target) bool

func always(string, Target) bool { return true }

func ownsTicket(callerID string, target Target) bool {
	return target.Ticket != nil && target.Ticket.RequesterID == callerID
}

func assignedTicket(callerID string, target Target) bool {
	return target.Ticket != nil && target.Ticket.AssignedTo(callerID)
}

// createsOwnTicket allows creation when no draft is given or the draft names the caller as requester.
func createsOwnTicket(callerID string, target Target) bool {
	return target.Ticket == nil || target.Ticket.RequesterID == callerID
}

func isSelf(callerID string, target Target) bool {
	return target.User != nil && target.User.ID == callerID
}

// policy is the single authorization table. Admins are handled before lookup.
// Any (role, action) pair absent here is denied.
var policy = map[domain.Role]map[Action]rule{
	domain.RoleUser: {
		ActionTicketCreate:  createsOwnTicket,
		ActionTicketList:    always,
		ActionTicketRead:    ownsTicket,
		ActionReportView:    always,
		ActionProfileUpdate: isSelf,
	},
	domain.RoleTechnician: {
		ActionTicketList:    always,
		ActionTicketRead:    assignedTicket,
		ActionTicketWork:    assignedTicket,
		ActionTicketQueue:   always,
		ActionReportView:    always,
		ActionProfileUpdate: isSelf,
	},
}

// CanPerform is the pure allow/deny decision for a role and caller id.
func CanPerform(role domain.Role, callerID string, action Action, target Target) bool {
	if role == domain.RoleAdmin {
		return true
	}
	rules, ok := policy[role]
	if !ok {
		return false
	}
	check, ok := rules[action]
	if !ok {
		return false
	}
	return check(callerID, target)
}

// Authorize checks the caller before the role is consulted: a nil caller is
// unauthenticated, a denied caller is forbidden.
func Authorize(caller *domain.User, action Action, target Target) error {
	if caller == nil || caller.ID == "" {
		return apperrors.NewUnauthenticated("authentication required")
	}
	if !CanPerform(caller.Role, caller.ID, action, target) {
		return apperrors.NewForbidden()
	}
	return nil
}
