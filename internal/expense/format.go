package expense

import (
	"fmt"

	"expensehq.app/web/internal/model"
)

const UnknownOwner = "Unknown"

// FormatAmount renders a dollar amount with two decimals and no locale grouping.
func FormatAmount(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

// FormatDate renders d as M/D/YYYY.
func FormatDate(d model.Date) string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d/%d/%d", int(d.Month), d.Day, d.Year)
}

// Row is one rendered line of the report table.
type Row struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Date   string `json:"submitted_on"`
	Amount string `json:"total_amount"`
	Owner  string `json:"owner"`
}

func NewRow(r model.ExpenseReport) Row {
	row := Row{
		ID:     r.ID,
		Title:  r.Title,
		Date:   FormatDate(r.SubmittedOn),
		Amount: FormatAmount(r.TotalAmount),
		Owner:  UnknownOwner,
	}
	if r.Notes != nil {
		row.Notes = *r.Notes
	}
	if r.CreatedByEmail != nil {
		row.Owner = *r.CreatedByEmail
	}
	return row
}

func NewRows(reports []model.ExpenseReport) []Row {
	rows := make([]Row, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, NewRow(r))
	}
	return rows
}
