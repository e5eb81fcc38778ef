// Package expense submits and lists the expense reports of the active organization.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"expensehq.app/web/common/logger"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

var (
	ErrTitleRequired  = errors.New("report title is required")
	ErrSubmitInFlight = errors.New("a report is already being submitted")
	ErrNoOrganization = errors.New("no active organization")
	ErrInvalidAmount  = errors.New("total amount must be a number")
)

const (
	TitleRequiredMessage = "Report title is required."
	InvalidAmountMessage = "Total amount must be a number."
	InvalidDateMessage   = "Submitted on must be a valid date."
)

// Input holds the form values as the user typed them.
type Input struct {
	Title       string     `json:"title"`
	SubmittedOn model.Date `json:"submitted_on"`
	Amount      float64    `json:"total_amount"`
	Notes       string     `json:"notes"`
}

// DefaultInput is an empty form dated today.
func DefaultInput() Input {
	return Input{SubmittedOn: model.Today()}
}

// ParseInput reads the raw form fields. A blank date means today and a blank
// amount means zero. Negative amounts are accepted.
func ParseInput(title, submittedOn, amount, notes string) (Input, error) {
	in := Input{Title: title, Notes: notes, SubmittedOn: model.Today()}

	if strings.TrimSpace(submittedOn) != "" {
		d, err := model.ParseDate(submittedOn)
		if err != nil {
			return in, err
		}
		in.SubmittedOn = d
	}

	if amount = strings.TrimSpace(amount); amount != "" {
		v, err := strconv.ParseFloat(amount, 64)
		if err != nil {
			return in, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
		in.Amount = v
	}
	return in, nil
}

// Form submits new reports. After a failure the typed values stay in the form.
type Form struct {
	data      backend.DataAPI
	identity  model.Identity
	onCreated func()

	mu         sync.Mutex
	values     Input
	submitting bool
	message    string
}

func NewForm(data backend.DataAPI, identity model.Identity, onCreated func()) *Form {
	return &Form{
		data:      data,
		identity:  identity,
		onCreated: onCreated,
		values:    DefaultInput(),
	}
}

// Submit inserts one report into org. On success the form is reset and onCreated runs.
func (f *Form) Submit(ctx context.Context, org *model.Organization, in Input) error {
	if org == nil {
		return ErrNoOrganization
	}

	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}
	f.submitting = true
	f.values = in
	f.message = ""
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.submitting = false
		f.mu.Unlock()
	}()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		f.setMessage(TitleRequiredMessage)
		return ErrTitleRequired
	}
	submittedOn := in.SubmittedOn
	if submittedOn.IsZero() {
		submittedOn = model.Today()
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:      "expensehq.expense.form",
		OrganizationID: logger.Ptr(org.ID),
	})

	err := f.data.InsertExpenseReport(ctx, f.identity, model.NewExpenseReport{
		OrganizationID: org.ID,
		Title:          title,
		SubmittedOn:    submittedOn,
		TotalAmount:    in.Amount,
		Notes:          in.Notes,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to submit expense report", "error", err)
		f.setMessage(backend.Message(err))
		return err
	}

	slog.InfoContext(ctx, "expense report submitted")
	f.mu.Lock()
	f.values = DefaultInput()
	f.mu.Unlock()

	if f.onCreated != nil {
		f.onCreated()
	}
	return nil
}

// Reject records a form error found before submission, keeping the typed values.
func (f *Form) Reject(in Input, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values = in
	f.message = msg
}

func (f *Form) setMessage(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
}

func (f *Form) Values() Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values
}

func (f *Form) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

func (f *Form) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}
