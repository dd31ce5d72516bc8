package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/repository"
	"github.com/deskops/helpdesk/internal/session"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

const (
	principalKey = "auth_principal"
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session"
)

// Principal represents the authenticated caller.
type Principal struct {
	User      *domain.User
	SessionID string
}

// AuthMiddleware resolves the session token into a Principal.
type AuthMiddleware struct {
	tokens   *TokenManager
	sessions session.Store
	users    repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, sessions session.Store, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional attaches the Principal when the request carries a valid session
// and lets anonymous requests through. Handlers decide what anonymous callers may see.
func (m *AuthMiddleware) Optional(c *fiber.Ctx) error {
	if TokenFromRequest(c) == "" {
		return c.Next()
	}
	principal, err := m.resolve(c)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthenticated) {
			return c.Next()
		}
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) (*Principal, error) {
	raw := TokenFromRequest(c)
	if raw == "" {
		return nil, apperrors.NewUnauthenticated("missing session")
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return nil, apperrors.NewUnauthenticated("invalid session")
	}

	sess, err := m.sessions.Get(c.UserContext(), claims.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, apperrors.NewUnauthenticated("session expired")
		}
		return nil, apperrors.NewStorageError(err)
	}
	if sess.UserID != claims.UserID {
		return nil, apperrors.NewUnauthenticated("invalid session")
	}

	// The stored account is authoritative: role edits apply immediately and deleted accounts lose access.
	user, err := m.users.GetByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthenticated("account no longer exists")
		}
		return nil, apperrors.NewStorageError(err)
	}
	return &Principal{User: user, SessionID: claims.ID}, nil
}

// TokenFromRequest reads the session token from the cookie or a bearer header.
func TokenFromRequest(c *fiber.Ctx) string {
	if cookie := c.Cookies(SessionCookie); cookie != "" {
		return cookie
	}
	authHeader := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// CallerFromContext returns the authenticated user, or nil for anonymous requests.
func CallerFromContext(c *fiber.Ctx) *domain.User {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal == nil {
		return nil
	}
	return principal.User
}
