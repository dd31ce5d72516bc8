package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// UsersHandler serves admin account management.
type UsersHandler struct {
	service *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{service: userService}
}

// List GET /admin/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	var role *domain.Role
	if raw := c.Query("role"); raw != "" {
		r := domain.Role(raw)
		role = &r
	}
	users, err := h.service.ListUsers(c.UserContext(), auth.CallerFromContext(c), role)
	if err != nil {
		return err
	}
	items := dto.NewUserResponses(users)
	return render(c, fiber.StatusOK, "users", fiber.Map{
		"Title": "Users",
		"Users": items,
		"Roles": domain.Roles,
	}, items)
}

// Create POST /admin/users/add.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.AdminCreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.AdminCreateUser(c.UserContext(), auth.CallerFromContext(c), req.ToInput())
	if err != nil {
		return err
	}
	return done(c, fiber.StatusCreated, "/admin/users", dto.NewUserResponse(*user))
}

// Delete POST /admin/users/delete/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.DeleteUser(c.UserContext(), auth.CallerFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return done(c, fiber.StatusNoContent, "/admin/users", nil)
}

// EditPage GET /admin/users/edit/:id.
func (h *UsersHandler) EditPage(c *fiber.Ctx) error {
	user, err := h.service.GetUser(c.UserContext(), auth.CallerFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.NewUserResponse(*user)
	return render(c, fiber.StatusOK, "user_edit", fiber.Map{
		"Title": "Edit user",
		"User":  resp,
		"Roles": domain.Roles,
	}, resp)
}

// Edit POST /admin/users/edit/:id.
func (h *UsersHandler) Edit(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.AdminUpdateUser(c.UserContext(), auth.CallerFromContext(c), c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return done(c, fiber.StatusOK, "/admin/users", dto.NewUserResponse(*user))
}

// ProfileHandler serves self-service profile edits.
type ProfileHandler struct {
	service *service.UserService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(userService *service.UserService) *ProfileHandler {
	return &ProfileHandler{service: userService}
}

// Show GET /profil.
func (h *ProfileHandler) Show(c *fiber.Ctx) error {
	caller := auth.CallerFromContext(c)
	if caller == nil {
		return apperrors.NewUnauthenticated("authentication required")
	}
	resp := dto.NewUserResponse(*caller)
	return render(c, fiber.StatusOK, "profile", fiber.Map{"Title": "Profile", "User": resp}, resp)
}

// Update POST /profil.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var req dto.UserUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	user, err := h.service.UpdateProfile(c.UserContext(), auth.CallerFromContext(c), req.ToInput())
	if err != nil {
		return err
	}
	return done(c, fiber.StatusOK, "/profil", dto.NewUserResponse(*user))
}
