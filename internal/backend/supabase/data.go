package supabase

import (
	"context"
	"net/http"
	"net/url"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

const (
	membersView         = "organization_members_view"
	expenseReportsTable = "expense_reports"
	expenseReportsView  = "expense_reports_view"
	createOrgProcedure  = "create_organization"
)

func (c *Client) ListMemberships(ctx context.Context, identity model.Identity, userID string) ([]model.Membership, error) {
	var rows []model.Membership
	err := c.do(ctx, backend.KindQuery, "list_memberships", request{
		method: http.MethodGet,
		path:   restPath + "/" + membersView,
		query: url.Values{
			"select":  {"*"},
			"user_id": {"eq." + userID},
			"order":   {"is_owner.desc,organization_name.asc"},
		},
		token: identity.AccessToken,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) CreateOrganization(ctx context.Context, identity model.Identity, name, slug string) error {
	return c.do(ctx, backend.KindMutation, "create_organization", request{
		method: http.MethodPost,
		path:   restPath + "/rpc/" + createOrgProcedure,
		body: map[string]string{
			"org_name": name,
			"org_slug": slug,
		},
		token: identity.AccessToken,
	}, nil)
}

func (c *Client) InsertExpenseReport(ctx context.Context, identity model.Identity, report model.NewExpenseReport) error {
	return c.do(ctx, backend.KindMutation, "insert_expense_report", request{
		method: http.MethodPost,
		path:   restPath + "/" + expenseReportsTable,
		body:   report,
		token:  identity.AccessToken,
		prefer: "return=minimal",
	}, nil)
}

func (c *Client) ListExpenseReports(ctx context.Context, identity model.Identity, organizationID string) ([]model.ExpenseReport, error) {
	var rows []model.ExpenseReport
	err := c.do(ctx, backend.KindQuery, "list_expense_reports", request{
		method: http.MethodGet,
		path:   restPath + "/" + expenseReportsView,
		query: url.Values{
			"select":          {"*"},
			"organization_id": {"eq." + organizationID},
			"order":           {"submitted_on.desc"},
		},
		token: identity.AccessToken,
	}, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
