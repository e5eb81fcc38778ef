package dto

import (
	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/expense"
)

// ReportForm is the HTML form; every field arrives as typed.
type ReportForm struct {
	Title       string `form:"title"`
	SubmittedOn string `form:"submitted_on"`
	TotalAmount string `form:"total_amount"`
	Notes       string `form:"notes"`
}

type CreateReportRequest struct {
	Title       string  `json:"title"`
	SubmittedOn string  `json:"submitted_on"`
	TotalAmount float64 `json:"total_amount"`
	Notes       string  `json:"notes"`
}

type ReportsResponse struct {
	OrganizationID string         `json:"organization_id"`
	Status         expense.Status `json:"status"`
	Message        string         `json:"message,omitempty"`
	Reports        []expense.Row  `json:"reports"`
}

func ToReportsResponse(v app.View) ReportsResponse {
	resp := ReportsResponse{
		Status:  v.Reports.Status,
		Message: v.Reports.Message,
		Reports: v.Reports.Rows,
	}
	if v.Active != nil {
		resp.OrganizationID = v.Active.ID
	}
	return resp
}
