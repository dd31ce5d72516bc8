package repository

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/domain"
)

// MemoryStore is a process-local Store used when no database is configured
// and in tests. Transactions run on a copy of the state that replaces the
// live state on commit; they hold the store lock for their whole duration.
type MemoryStore struct {
	mu    *sync.Mutex
	clock clock.Clock
	state *memoryState
	inTx  bool
}

type memoryState struct {
	seq     int64
	users   map[string]memoryUser
	tickets map[string]memoryTicket
	history map[string][]domain.TicketHistory
}

type memoryUser struct {
	user domain.User
	seq  int64
}

type memoryTicket struct {
	ticket domain.Ticket
	seq    int64
}

// NewMemoryStore returns an empty in-memory Store. Update times come from clk;
// nil means the wall clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{
		mu:    &sync.Mutex{},
		clock: clk,
		state: &memoryState{
			users:   make(map[string]memoryUser),
			tickets: make(map[string]memoryTicket),
			history: make(map[string][]domain.TicketHistory),
		},
	}
}

func (s *MemoryStore) Users() UserRepository             { return memoryUsers{s} }
func (s *MemoryStore) Tickets() TicketRepository         { return memoryTickets{s} }
func (s *MemoryStore) History() TicketHistoryRepository { return memoryHistory{s} }

func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	tx := &MemoryStore{mu: s.mu, clock: s.clock, state: working, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

// guard locks the store unless the caller already holds it through a transaction.
func (s *MemoryStore) guard() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (st *memoryState) clone() *memoryState {
	next := &memoryState{
		seq:     st.seq,
		users:   maps.Clone(st.users),
		tickets: make(map[string]memoryTicket, len(st.tickets)),
		history: make(map[string][]domain.TicketHistory, len(st.history)),
	}
	for id, entry := range st.tickets {
		next.tickets[id] = memoryTicket{ticket: copyTicket(entry.ticket), seq: entry.seq}
	}
	for id, entries := range st.history {
		next.history[id] = append([]domain.TicketHistory(nil), entries...)
	}
	return next
}

func (st *memoryState) nextSeq() int64 {
	st.seq++
	return st.seq
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.AssigneeID != nil {
		assignee := *t.AssigneeID
		t.AssigneeID = &assignee
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		t.ResolvedAt = &resolved
	}
	return t
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	defer r.s.guard()()
	st := r.s.state
	if st.emailTaken(user.Email, "") {
		return ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	user.UpdatedAt = user.CreatedAt
	st.users[user.ID] = memoryUser{user: *user, seq: st.nextSeq()}
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	defer r.s.guard()()
	st := r.s.state
	existing, ok := st.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if st.emailTaken(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	user.CreatedAt = existing.user.CreatedAt
	user.UpdatedAt = r.s.clock.Now()
	existing.user = *user
	st.users[user.ID] = existing
	return nil
}

// Delete mirrors the SQL foreign keys: requester references restrict, assignee references are cleared.
func (r memoryUsers) Delete(_ context.Context, id string) error {
	defer r.s.guard()()
	st := r.s.state
	if _, ok := st.users[id]; !ok {
		return ErrNotFound
	}
	for _, entry := range st.tickets {
		if entry.ticket.RequesterID == id {
			return ErrReferenced
		}
	}
	st.unassign(id, r.s.clock.Now())
	delete(st.users, id)
	return nil
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	defer r.s.guard()()
	entry, ok := r.s.state.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := entry.user
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer r.s.guard()()
	for _, entry := range r.s.state.users {
		if strings.EqualFold(entry.user.Email, email) {
			user := entry.user
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	defer r.s.guard()()
	return r.s.state.listUsers(func(u domain.User) bool {
		return filter.Role == nil || u.Role == *filter.Role
	}), nil
}

func (r memoryUsers) ListTechnicians(_ context.Context) ([]domain.User, error) {
	defer r.s.guard()()
	return r.s.state.listUsers(func(u domain.User) bool {
		return u.Role == domain.RoleTechnician
	}), nil
}

func (st *memoryState) emailTaken(email, exceptID string) bool {
	for id, entry := range st.users {
		if id != exceptID && strings.EqualFold(entry.user.Email, email) {
			return true
		}
	}
	return false
}

func (st *memoryState) listUsers(match func(domain.User) bool) []domain.User {
	entries := make([]memoryUser, 0, len(st.users))
	for _, entry := range st.users {
		if match(entry.user) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.user.CreatedAt.Equal(b.user.CreatedAt) {
			return a.user.CreatedAt.Before(b.user.CreatedAt)
		}
		return a.seq < b.seq
	})
	result := make([]domain.User, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entry.user)
	}
	return result
}

func (st *memoryState) unassign(assigneeID string, now time.Time) int64 {
	var count int64
	for id, entry := range st.tickets {
		if entry.ticket.AssignedTo(assigneeID) {
			entry.ticket.AssigneeID = nil
			entry.ticket.UpdatedAt = now
			st.tickets[id] = entry
			count++
		}
	}
	return count
}

type memoryTickets struct{ s *MemoryStore }

func (r memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.guard()()
	st := r.s.state
	if _, ok := st.users[ticket.RequesterID]; !ok {
		return ErrReferenced
	}
	ticket.ID = uuid.NewString()
	ticket.UpdatedAt = ticket.CreatedAt
	st.tickets[ticket.ID] = memoryTicket{ticket: copyTicket(*ticket), seq: st.nextSeq()}
	return nil
}

func (r memoryTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	defer r.s.guard()()
	st := r.s.state
	existing, ok := st.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	next := copyTicket(*ticket)
	next.RequesterID = existing.ticket.RequesterID
	next.CreatedAt = existing.ticket.CreatedAt
	next.UpdatedAt = r.s.clock.Now()
	existing.ticket = next
	st.tickets[ticket.ID] = existing
	ticket.UpdatedAt = next.UpdatedAt
	return nil
}

func (r memoryTickets) Delete(_ context.Context, id string) error {
	defer r.s.guard()()
	st := r.s.state
	if _, ok := st.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(st.tickets, id)
	delete(st.history, id)
	return nil
}

func (r memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	defer r.s.guard()()
	entry, ok := r.s.state.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := copyTicket(entry.ticket)
	return &ticket, nil
}

func (r memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	defer r.s.guard()()
	entries := make([]memoryTicket, 0, len(r.s.state.tickets))
	for _, entry := range r.s.state.tickets {
		if matchesTicket(entry.ticket, filter) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.Before(b.ticket.CreatedAt)
		}
		return a.seq < b.seq
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(entries) {
			entries = nil
		} else {
			entries = entries[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}

	result := make([]domain.Ticket, 0, len(entries))
	for _, entry := range entries {
		result = append(result, copyTicket(entry.ticket))
	}
	return result, nil
}

func matchesTicket(t domain.Ticket, filter TicketFilter) bool {
	if filter.Status != nil && t.Status != *filter.Status {
		return false
	}
	if filter.Priority != nil && t.Priority != *filter.Priority {
		return false
	}
	if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
		return false
	}
	if filter.AssigneeID != nil && !t.AssignedTo(*filter.AssigneeID) {
		return false
	}
	return true
}

func (r memoryTickets) CountByRequester(_ context.Context, requesterID string) (int, error) {
	defer r.s.guard()()
	count := 0
	for _, entry := range r.s.state.tickets {
		if entry.ticket.RequesterID == requesterID {
			count++
		}
	}
	return count, nil
}

func (r memoryTickets) UnassignFrom(_ context.Context, assigneeID string) (int64, error) {
	defer r.s.guard()()
	return r.s.state.unassign(assigneeID, r.s.clock.Now()), nil
}

func (r memoryTickets) OpenLoadByAssignee(_ context.Context) (map[string]int, error) {
	defer r.s.guard()()
	load := make(map[string]int)
	for _, entry := range r.s.state.tickets {
		t := entry.ticket
		if t.AssigneeID != nil && t.Status != domain.TicketStatusClosed {
			load[*t.AssigneeID]++
		}
	}
	return load, nil
}

type memoryHistory struct{ s *MemoryStore }

func (r memoryHistory) Create(_ context.Context, history *domain.TicketHistory) error {
	defer r.s.guard()()
	st := r.s.state
	if _, ok := st.tickets[history.TicketID]; !ok {
		return ErrReferenced
	}
	history.ID = uuid.NewString()
	st.history[history.TicketID] = append(st.history[history.TicketID], *history)
	return nil
}

func (r memoryHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	defer r.s.guard()()
	return append([]domain.TicketHistory(nil), r.s.state.history[ticketID]...), nil
}
