package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/export"
	"github.com/deskops/helpdesk/internal/service"
	apperrors "github.com/deskops/helpdesk/pkg/util/errorutil"
)

// TicketsHandler serves the ticket feed, submission, dashboard and export.
type TicketsHandler struct {
	service *service.TicketService
	logger  *zap.Logger
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, logger *zap.Logger) *TicketsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketsHandler{service: ticketService, logger: logger}
}

// Feed GET /tickets. Always JSON.
func (h *TicketsHandler) Feed(c *fiber.Ctx) error {
	tickets, err := h.service.Feed(c.UserContext(), auth.CallerFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponses(tickets)})
}

// Form GET /formulaire.
func (h *TicketsHandler) Form(c *fiber.Ctx) error {
	return page(c, "ticket_form", fiber.Map{"Title": "New ticket"})
}

// Submit POST /tickets.
func (h *TicketsHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Submit(c.UserContext(), auth.CallerFromContext(c), service.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	})
	if err != nil {
		return err
	}
	return done(c, fiber.StatusCreated, "/dashboard", dto.NewTicketResponse(*ticket))
}

// Dashboard GET /dashboard.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	var query dto.TicketListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	tickets, err := h.service.List(c.UserContext(), auth.CallerFromContext(c), query.ToFilter())
	if err != nil {
		return err
	}
	items := dto.NewTicketResponses(tickets)
	return render(c, fiber.StatusOK, "dashboard", fiber.Map{
		"Title":    "Dashboard",
		"Tickets":  items,
		"Query":    query,
		"Statuses": domain.TicketStatuses,
	}, items)
}

// Export GET /export.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	tickets, err := h.service.Feed(c.UserContext(), auth.CallerFromContext(c))
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := export.WriteTicketsCSV(&buf, tickets); err != nil {
		return apperrors.NewInternalError(err)
	}
	h.logger.Info("tickets exported", zap.Int("rows", len(tickets)))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="tickets.csv"`)
	return c.Send(buf.Bytes())
}
