package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/repository"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// Picker chooses an index in [0, n). n is always positive.
type Picker interface {
	IntN(n int) int
}

// NewSeededPicker returns a deterministic picker for a non-zero seed and a
// clock-seeded one otherwise.
func NewSeededPicker(seed int64) Picker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))
}

// AssignmentService selects technicians for new tickets and validates
// explicit assignments.
type AssignmentService struct {
	strategy string
	mu       sync.Mutex
	picker   Picker
}

// NewAssignmentService creates the service. A nil picker is seeded from cfg.
func NewAssignmentService(cfg config.AssignmentConfig, picker Picker) *AssignmentService {
	if picker == nil {
		picker = NewSeededPicker(cfg.Seed)
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = config.AssignmentRandom
	}
	return &AssignmentService{strategy: strategy, picker: picker}
}

// Strategy reports the configured selection strategy.
func (s *AssignmentService) Strategy() string {
	return s.strategy
}

// PickTechnician chooses an assignee among current technicians using tx so
// the choice and the ticket insert share one transaction. It returns nil
// when no technician exists.
func (s *AssignmentService) PickTechnician(ctx context.Context, tx repository.Store) (*domain.User, error) {
	technicians, err := tx.Users().ListTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	if len(technicians) == 0 {
		return nil, nil
	}

	candidates := technicians
	if s.strategy == config.AssignmentLeastLoaded {
		load, err := tx.Tickets().OpenLoadByAssignee(ctx)
		if err != nil {
			return nil, err
		}
		candidates = leastLoaded(technicians, load)
	}

	picked := candidates[s.pick(len(candidates))]
	return &picked, nil
}

// ValidateAssignee confirms id names an existing technician.
func (s *AssignmentService) ValidateAssignee(ctx context.Context, tx repository.Store, id string) (*domain.User, error) {
	user, err := tx.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewFieldError("assignee_id", "unknown user")
		}
		return nil, err
	}
	if user.Role != domain.RoleTechnician {
		return nil, apperrors.NewFieldError("assignee_id", "assignee must be a technician")
	}
	return user, nil
}

func (s *AssignmentService) pick(n int) int {
	if n <= 1 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.picker.IntN(n)
}

// leastLoaded keeps the technicians holding the fewest non-closed tickets in
// their listing order.
func leastLoaded(technicians []domain.User, load map[string]int) []domain.User {
	minLoad := -1
	var result []domain.User
	for _, tech := range technicians {
		count := load[tech.ID]
		switch {
		case minLoad < 0 || count < minLoad:
			minLoad = count
			result = []domain.User{tech}
		case count == minLoad:
			result = append(result, tech)
		}
	}
	return result
}
