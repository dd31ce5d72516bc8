package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// AuthHandler serves login, registration and logout.
type AuthHandler struct {
	service      *service.AuthService
	secureCookie bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{service: authService, secureCookie: secureCookie}
}

// LoginPage GET /login.
func (h *AuthHandler) LoginPage(c *fiber.Ctx) error {
	return page(c, "login", fiber.Map{"Title": "Sign in"})
}

// Login POST /login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, token, err := h.service.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if WantsHTML(c) && apperrors.IsCode(err, apperrors.CodeInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).Render("login", fiber.Map{
				"Title": "Sign in",
				"Error": apperrors.ToDomainError(err).Message,
				"Email": req.Email,
			}, LayoutView)
		}
		return err
	}
	h.setSessionCookie(c, token.Token, token.ExpiresAt)
	return done(c, fiber.StatusOK, "/dashboard", authResponse(user, token))
}

// RegisterPage GET /register.
func (h *AuthHandler) RegisterPage(c *fiber.Ctx) error {
	return page(c, "register", fiber.Map{"Title": "Create account"})
}

// Register POST /register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, token, err := h.service.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setSessionCookie(c, token.Token, token.ExpiresAt)
	return done(c, fiber.StatusCreated, "/dashboard", authResponse(user, token))
}

// Logout GET /logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthenticated("authentication required")
	}
	if err := h.service.Logout(c.UserContext(), principal.SessionID); err != nil {
		return err
	}
	h.setSessionCookie(c, "", time.Unix(0, 0))
	return done(c, fiber.StatusNoContent, "/login", nil)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.SessionCookie,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func authResponse(user *domain.User, token *service.SessionToken) dto.AuthResponse {
	return dto.AuthResponse{
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
		User:      dto.NewUserResponse(*user),
	}
}
