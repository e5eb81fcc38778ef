package app

import (
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/expense"
	"expensehq.app/web/internal/model"
)

// View is a snapshot of everything the pages and the JSON API render.
type View struct {
	State        auth.State `json:"state"`
	LoginMessage string     `json:"login_message,omitempty"`
	UserEmail    string     `json:"user_email"`

	Organizations       []model.Organization `json:"organizations"`
	Active              *model.Organization  `json:"active_organization"`
	OrganizationMessage string               `json:"organization_message,omitempty"`
	Creating            bool                 `json:"creating"`
	OrganizationName    string               `json:"organization_name"`
	OrganizationSlug    string               `json:"organization_slug"`

	Report        expense.Input       `json:"report"`
	ReportMessage string              `json:"report_message,omitempty"`
	Submitting    bool                `json:"submitting"`
	Reports       expense.ListingView `json:"reports"`
	Refresh       uint64              `json:"refresh"`
}

func (v View) Authenticated() bool {
	return v.State == auth.StateAuthenticated
}

func (a *App) View() View {
	view := View{
		State:         a.gate.State(),
		LoginMessage:  a.gate.Message(),
		Organizations: []model.Organization{},
		Report:        expense.DefaultInput(),
		Reports:       expense.ListingView{Status: expense.StatusIdle, Rows: []expense.Row{}},
	}

	c, ok := a.components()
	if !ok {
		view.UserEmail = (*model.Identity)(nil).DisplayEmail()
		return view
	}
	view.UserEmail = c.identity.DisplayEmail()
	view.Refresh = c.refresh

	view.Organizations = c.registry.Organizations()
	view.Active = c.registry.Active()
	view.OrganizationMessage = c.registry.Message()
	view.Creating = c.registry.Creating()
	view.OrganizationName, view.OrganizationSlug = c.registry.Inputs()

	view.Report = c.form.Values()
	view.ReportMessage = c.form.Message()
	view.Submitting = c.form.Submitting()
	view.Reports = c.listing.View()
	return view
}
