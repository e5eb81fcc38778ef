package model

import "time"

type ExpenseReport struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	SubmittedOn    Date      `json:"submitted_on"`
	TotalAmount    float64   `json:"total_amount"`
	Notes          *string   `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedByEmail *string   `json:"created_by_email"`
}

// NewExpenseReport is the insert payload. Notes is sent as typed, including "".
type NewExpenseReport struct {
	OrganizationID string  `json:"organization_id"`
	Title          string  `json:"title"`
	SubmittedOn    Date    `json:"submitted_on"`
	TotalAmount    float64 `json:"total_amount"`
	Notes          string  `json:"notes"`
}
