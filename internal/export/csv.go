// Package export renders ticket listings in download formats.
package export

import (
	"encoding/csv"
	"io"

	"github.com/deskops/helpdesk/internal/domain"
)

// CreationDateLayout formats the CreationDate column.
const CreationDateLayout = "2006-01-02 15:04:05"

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"ID", "Title", "Description", "Priority", "Status", "CreationDate", "RequesterId", "AssigneeId"}

// WriteTicketsCSV writes a header row followed by one row per ticket.
// Unassigned tickets leave AssigneeId empty.
func WriteTicketsCSV(w io.Writer, tickets []domain.Ticket) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, ticket := range tickets {
		assignee := ""
		if ticket.AssigneeID != nil {
			assignee = *ticket.AssigneeID
		}
		record := []string{
			ticket.ID,
			ticket.Title,
			ticket.Description,
			ticket.Priority,
			string(ticket.Status),
			ticket.CreatedAt.UTC().Format(CreationDateLayout),
			ticket.RequesterID,
			assignee,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
