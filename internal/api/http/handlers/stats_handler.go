package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk/internal/api/dto"
	"github.com/deskops/helpdesk/internal/auth"
	"github.com/deskops/helpdesk/internal/domain"
	"github.com/deskops/helpdesk/internal/service"
)

// StatsHandler serves the aggregate report.
type StatsHandler struct {
	service *service.ReportService
}

// NewStatsHandler constructs handler.
func NewStatsHandler(reportService *service.ReportService) *StatsHandler {
	return &StatsHandler{service: reportService}
}

// Stats GET /stats.
func (h *StatsHandler) Stats(c *fiber.Ctx) error {
	report, err := h.service.Summarize(c.UserContext(), auth.CallerFromContext(c))
	if err != nil {
		return err
	}
	resp := dto.NewReportResponse(report)
	return render(c, fiber.StatusOK, "stats", fiber.Map{
		"Title":    "Statistics",
		"Report":   resp,
		"Statuses": domain.TicketStatuses,
	}, resp)
}
