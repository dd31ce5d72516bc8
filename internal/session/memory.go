package session

import (
	"context"
	"sync"

	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/domain"
)

// MemoryStore keeps sessions in process memory. Used when Redis is not
// configured and in tests; sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]domain.Session
}

// NewMemoryStore returns an empty store that expires sessions by clk.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryStore{clock: clk, sessions: make(map[string]domain.Session)}
}

func (s *MemoryStore) Create(_ context.Context, sess domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !s.clock.Now().Before(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Revoke(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
