package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/config"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/session"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// SessionToken is the signed credential handed to a client after login.
type SessionToken struct {
	Token     string
	SessionID string
	ExpiresAt time.Time
}

// AuthService coordinates registration, login and logout flows.
type AuthService struct {
	users    *UserService
	sessions session.Store
	tokenMgr *auth.TokenManager
	logger   *zap.Logger
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users    *UserService
	Sessions session.Store
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    deps.Users,
		sessions: deps.Sessions,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.SessionTTL()),
		logger:   logger,
	}
}

// Register creates a self-service account. Self-registration always yields
// the user role; other roles are created by admins.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, *SessionToken, error) {
	user, err := s.users.CreateUser(ctx, NewUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     domain.RoleUser,
	})
	if err != nil {
		return nil, nil, err
	}
	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

// Login authenticates the credentials and opens a new session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *SessionToken, error) {
	user, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}
	token, err := s.startSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, nil
}

// Logout revokes the session so its token stops working immediately.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*SessionToken, error) {
	sessionID := newID()
	token, expiresAt, err := s.tokenMgr.GenerateToken(sessionID, user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	err = s.sessions.Create(ctx, domain.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return &SessionToken{Token: token, SessionID: sessionID, ExpiresAt: expiresAt}, nil
}
