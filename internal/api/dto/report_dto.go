package dto

import (
	"time"

	"github.com/deskops/helpdesk/internal/service"
)

// ReportResponse is the JSON form of the statistics page.
type ReportResponse struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Total       int                      `json:"total"`
	ByStatus    map[string]int           `json:"by_status"`
	ByPriority  map[string]int           `json:"by_priority"`
	Technicians []TechnicianStatResponse `json:"technicians"`
}

// TechnicianStatResponse is one technician row.
type TechnicianStatResponse struct {
	TechnicianID string  `json:"technician_id"`
	Name         string  `json:"name"`
	Resolved     int     `json:"resolved"`
	AverageHours float64 `json:"average_hours"`
	Approximate  bool    `json:"approximate"`
}

// NewReportResponse maps a report.
func NewReportResponse(r *service.Report) ReportResponse {
	resp := ReportResponse{
		GeneratedAt: r.GeneratedAt,
		Total:       r.Total,
		ByStatus:    make(map[string]int, len(r.ByStatus)),
		ByPriority:  make(map[string]int, len(r.ByPriority)),
		Technicians: make([]TechnicianStatResponse, 0, len(r.Technicians)),
	}
	for status, count := range r.ByStatus {
		resp.ByStatus[string(status)] = count
	}
	for priority, count := range r.ByPriority {
		resp.ByPriority[priority] = count
	}
	for _, stat := range r.Technicians {
		resp.Technicians = append(resp.Technicians, TechnicianStatResponse{
			TechnicianID: stat.TechnicianID,
			Name:         stat.Name,
			Resolved:     stat.Resolved,
			AverageHours: stat.AverageHours,
			Approximate:  stat.Approximate,
		})
	}
	return resp
}
