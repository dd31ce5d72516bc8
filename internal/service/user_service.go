package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/clock"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/events"
	"github.com/deskops/helpdesk/internal/repository"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// UserService owns account records: creation, credential checks and admin management.
type UserService struct {
	store      repository.Store
	clock      clock.Clock
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
	// dummyHash is compared against when an email is unknown so both failure
	// paths cost one bcrypt comparison.
	dummyHash string
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	Store      repository.Store
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewUserInput describes a new account.
type NewUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserUpdateInput lists the fields to change; nil fields are left alone.
type UserUpdateInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
}

// NewUserService constructs the service.
func NewUserService(cfg config.AuthConfig, deps UserDependencies) *UserService {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dummy, err := auth.HashPassword("timing-equalizer-"+newID(), cfg.BcryptCost)
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}
	return &UserService{
		store:      deps.Store,
		clock:      clk,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		dummyHash:  dummy,
	}
}

// CreateUser validates and stores a new account. The password is hashed
// before it reaches the store and is never logged.
func (s *UserService) CreateUser(ctx context.Context, input NewUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewFieldError("name", "required")
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewFieldError("role", "must be one of admin, user, technician")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		CreatedAt:    s.clock.Now(),
	}
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByEmail(ctx, email); err == nil {
			return apperrors.NewDuplicateEmail(email)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.NewDuplicateEmail(email)
		}
		return nil, mapStoreError(err, "user", "")
	}

	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// AdminCreateUser creates an account of any role on behalf of an admin.
func (s *UserService) AdminCreateUser(ctx context.Context, caller *domain.User, input NewUserInput) (*domain.User, error) {
	if err := auth.Authorize(caller, auth.ActionUserCreate, auth.Target{}); err != nil {
		return nil, err
	}
	return s.CreateUser(ctx, input)
}

// Authenticate returns the account matching the credentials. Unknown email
// and wrong password produce the same error after the same amount of work.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.Users().GetByEmail(ctx, normalized)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewStorageError(err)
		}
		_ = auth.ComparePassword(s.dummyHash, password)
		return nil, apperrors.NewInvalidCredentials()
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewInvalidCredentials()
	}
	return user, nil
}

// FindByID loads an account without an authorization check.
func (s *UserService) FindByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, mapStoreError(err, "user", id)
	}
	return user, nil
}

// GetUser loads an account for the caller.
func (s *UserService) GetUser(ctx context.Context, caller *domain.User, id string) (*domain.User, error) {
	if err := auth.Authorize(caller, auth.ActionUserRead, auth.Target{User: &domain.User{ID: id}}); err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// ListUsers returns every account, optionally narrowed to one role.
func (s *UserService) ListUsers(ctx context.Context, caller *domain.User, role *domain.Role) ([]domain.User, error) {
	if err := auth.Authorize(caller, auth.ActionUserList, auth.Target{}); err != nil {
		return nil, err
	}
	if role != nil && !role.Valid() {
		return nil, apperrors.NewFieldError("role", "unknown role")
	}
	users, err := s.store.Users().List(ctx, repository.UserFilter{Role: role})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return users, nil
}

// AdminUpdateUser lets an admin change any account field, including the role.
func (s *UserService) AdminUpdateUser(ctx context.Context, caller *domain.User, id string, input UserUpdateInput) (*domain.User, error) {
	if err := auth.Authorize(caller, auth.ActionUserUpdate, auth.Target{User: &domain.User{ID: id}}); err != nil {
		return nil, err
	}
	return s.updateUser(ctx, id, input)
}

// UpdateProfile lets callers change their own name, email or password. The role cannot change here.
func (s *UserService) UpdateProfile(ctx context.Context, caller *domain.User, input UserUpdateInput) (*domain.User, error) {
	if caller == nil {
		return nil, apperrors.NewUnauthenticated("authentication required")
	}
	if err := auth.Authorize(caller, auth.ActionProfileUpdate, auth.Target{User: caller}); err != nil {
		return nil, err
	}
	if input.Role != nil && *input.Role != caller.Role {
		return nil, apperrors.NewForbidden()
	}
	input.Role = nil
	return s.updateUser(ctx, caller.ID, input)
}

func (s *UserService) updateUser(ctx context.Context, id string, input UserUpdateInput) (*domain.User, error) {
	var updated *domain.User
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		user, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return apperrors.NewFieldError("name", "required")
			}
			user.Name = name
		}
		if input.Email != nil {
			email, err := normalizeEmail(*input.Email)
			if err != nil {
				return err
			}
			if email != user.Email {
				if _, err := tx.Users().GetByEmail(ctx, email); err == nil {
					return apperrors.NewDuplicateEmail(email)
				} else if !errors.Is(err, repository.ErrNotFound) {
					return err
				}
			}
			user.Email = email
		}
		if input.Password != nil && *input.Password != "" {
			if err := validatePassword(*input.Password); err != nil {
				return err
			}
			hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
			if err != nil {
				return apperrors.NewInternalError(err)
			}
			user.PasswordHash = hash
		}
		if input.Role != nil {
			if !input.Role.Valid() {
				return apperrors.NewFieldError("role", "must be one of admin, user, technician")
			}
			// A demoted technician cannot keep assigned tickets.
			if user.Role == domain.RoleTechnician && *input.Role != domain.RoleTechnician {
				if _, err := tx.Tickets().UnassignFrom(ctx, user.ID); err != nil {
					return err
				}
			}
			user.Role = *input.Role
		}
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err, "user", id)
	}
	return updated, nil
}

// DeleteUser removes an account. Users who filed tickets cannot be deleted;
// tickets assigned to a deleted technician become unassigned.
func (s *UserService) DeleteUser(ctx context.Context, caller *domain.User, id string) error {
	if err := auth.Authorize(caller, auth.ActionUserDelete, auth.Target{User: &domain.User{ID: id}}); err != nil {
		return err
	}
	if caller.ID == id {
		return apperrors.NewConflict("cannot delete your own account", nil)
	}

	var unassigned int64
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().GetByID(ctx, id); err != nil {
			return err
		}
		filed, err := tx.Tickets().CountByRequester(ctx, id)
		if err != nil {
			return err
		}
		if filed > 0 {
			return apperrors.NewConflict("user has filed tickets", map[string]any{"tickets": filed})
		}
		unassigned, err = tx.Tickets().UnassignFrom(ctx, id)
		if err != nil {
			return err
		}
		return tx.Users().Delete(ctx, id)
	})
	if err != nil {
		return mapStoreError(err, "user", id)
	}

	s.logger.Info("user deleted", zap.String("user_id", id), zap.Int64("unassigned_tickets", unassigned))
	publish(ctx, s.dispatcher, s.logger, events.Event{
		Type:      events.EventUserDeleted,
		Actor:     actorOf(caller),
		Timestamp: s.clock.Now(),
		Payload:   events.UserDeletedPayload{UserID: id, UnassignedTickets: unassigned},
	})
	return nil
}
