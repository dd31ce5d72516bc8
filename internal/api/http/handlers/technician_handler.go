package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
)

// TechnicianHandler serves the technician work queue.
type TechnicianHandler struct {
	service *service.TicketService
}

// NewTechnicianHandler constructs handler.
func NewTechnicianHandler(ticketService *service.TicketService) *TechnicianHandler {
	return &TechnicianHandler{service: ticketService}
}

// Queue GET /technicien/tickets.
func (h *TechnicianHandler) Queue(c *fiber.Ctx) error {
	tickets, err := h.service.Queue(c.UserContext(), auth.CallerFromContext(c))
	if err != nil {
		return err
	}
	items := dto.NewTicketResponses(tickets)
	return render(c, fiber.StatusOK, "technician_tickets", fiber.Map{
		"Title":    "My tickets",
		"Tickets":  items,
		"Statuses": domain.TicketStatuses,
	}, items)
}

// Update POST /technicien/tickets/:id/update.
func (h *TechnicianHandler) Update(c *fiber.Ctx) error {
	var req dto.TechnicianUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.TechnicianUpdate(c.UserContext(), auth.CallerFromContext(c), c.Params("id"), req.ToInput())
	if err != nil {
		return err
	}
	return done(c, fiber.StatusOK, "/technicien/tickets", dto.NewTicketResponse(*ticket))
}
