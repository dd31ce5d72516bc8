package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
)

// AdminTicketsHandler serves admin ticket edits and deletion.
type AdminTicketsHandler struct {
	tickets *service.TicketService
	users   *service.UserService
}

// NewAdminTicketsHandler constructs handler.
func NewAdminTicketsHandler(ticketService *service.TicketService, userService *service.UserService) *AdminTicketsHandler {
	return &AdminTicketsHandler{tickets: ticketService, users: userService}
}

// EditPage GET /admin/tickets/edit/:id.
func (h *AdminTicketsHandler) EditPage(c *fiber.Ctx) error {
	caller := auth.CallerFromContext(c)
	if err := auth.Authorize(caller, auth.ActionTicketEdit, auth.Target{}); err != nil {
		return err
	}
	detail, err := h.tickets.GetWithHistory(c.UserContext(), caller, c.Params("id"))
	if err != nil {
		return err
	}
	resp := dto.NewTicketDetailResponse(detail)
	if !WantsHTML(c) {
		return c.JSON(fiber.Map{"data": resp})
	}
	technicianRole := domain.RoleTechnician
	technicians, err := h.users.ListUsers(c.UserContext(), caller, &technicianRole)
	if err != nil {
		return err
	}
	return page(c, "ticket_edit", fiber.Map{
		"Title":       "Edit ticket",
		"Ticket":      resp,
		"Technicians": dto.NewUserResponses(technicians),
		"Statuses":    domain.TicketStatuses,
	})
}

// Edit POST /admin/tickets/edit/:id.
func (h *AdminTicketsHandler) Edit(c *fiber.Ctx) error {
	var req dto.AdminTicketEditRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.AdminEdit(c.UserContext(), auth.CallerFromContext(c), c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return done(c, fiber.StatusOK, "/dashboard", dto.NewTicketResponse(*ticket))
}

// Delete POST /admin/tickets/delete/:id.
func (h *AdminTicketsHandler) Delete(c *fiber.Ctx) error {
	if err := h.tickets.Delete(c.UserContext(), auth.CallerFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return done(c, fiber.StatusNoContent, "/dashboard", nil)
}
