// Package postgres serves the data surface straight from the service's database,
// applying the same row level security the REST layer applies: every statement
// runs as the authenticated role with the caller's JWT claims set locally.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"expensehq.app/web/core/db"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

const (
	listMembershipsSQL = `
select organization_id::text, organization_name, organization_slug, user_id::text, is_owner
from organization_members_view
where user_id = $1
order by is_owner desc, organization_name asc`

	createOrganizationSQL = `select create_organization($1, $2)`

	insertExpenseReportSQL = `
insert into expense_reports (organization_id, title, submitted_on, total_amount, notes)
values ($1, $2, $3, $4, $5)`

	listExpenseReportsSQL = `
select id::text, organization_id::text, title, submitted_on, total_amount::float8, notes, created_at, created_by_email
from expense_reports_view
where organization_id = $1
order by submitted_on desc`
)

// Store implements backend.DataAPI over a pgx pool.
type Store struct {
	db *db.DB
}

func New(database *db.DB) *Store {
	return &Store{db: database}
}

// claims mirrors the JWT claims the hosted service exposes to policies.
type claims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (s *Store) asUser(ctx context.Context, identity model.Identity, fn func(tx pgx.Tx) error) error {
	payload, err := json.Marshal(claims{Sub: identity.UserID, Email: identity.Email, Role: "authenticated"})
	if err != nil {
		return fmt.Errorf("encoding claims: %w", err)
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "select set_config('request.jwt.claims', $1, true)", string(payload)); err != nil {
			return fmt.Errorf("setting claims: %w", err)
		}
		if _, err := tx.Exec(ctx, "set local role authenticated"); err != nil {
			return fmt.Errorf("setting role: %w", err)
		}
		return fn(tx)
	})
}

func (s *Store) ListMemberships(ctx context.Context, identity model.Identity, userID string) ([]model.Membership, error) {
	var out []model.Membership
	err := s.asUser(ctx, identity, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listMembershipsSQL, userID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Membership, error) {
			var m model.Membership
			err := row.Scan(&m.OrganizationID, &m.OrganizationName, &m.OrganizationSlug, &m.UserID, &m.IsOwner)
			return m, err
		})
		return err
	})
	if err != nil {
		return nil, toBackendError(backend.KindQuery, "list_memberships", err)
	}
	return out, nil
}

func (s *Store) CreateOrganization(ctx context.Context, identity model.Identity, name, slug string) error {
	err := s.asUser(ctx, identity, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, createOrganizationSQL, name, slug)
		return err
	})
	return toBackendError(backend.KindMutation, "create_organization", err)
}

func (s *Store) InsertExpenseReport(ctx context.Context, identity model.Identity, report model.NewExpenseReport) error {
	err := s.asUser(ctx, identity, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertExpenseReportSQL,
			report.OrganizationID,
			report.Title,
			report.SubmittedOn.Time(),
			report.TotalAmount,
			report.Notes,
		)
		return err
	})
	return toBackendError(backend.KindMutation, "insert_expense_report", err)
}

func (s *Store) ListExpenseReports(ctx context.Context, identity model.Identity, organizationID string) ([]model.ExpenseReport, error) {
	var out []model.ExpenseReport
	err := s.asUser(ctx, identity, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, listExpenseReportsSQL, organizationID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ExpenseReport, error) {
			var (
				r           model.ExpenseReport
				submittedOn time.Time
			)
			err := row.Scan(&r.ID, &r.OrganizationID, &r.Title, &submittedOn, &r.TotalAmount, &r.Notes, &r.CreatedAt, &r.CreatedByEmail)
			r.SubmittedOn = model.DateOf(submittedOn)
			return r, err
		})
		return err
	})
	if err != nil {
		return nil, toBackendError(backend.KindQuery, "list_expense_reports", err)
	}
	return out, nil
}

// toBackendError keeps the database's own message so it reaches the user unchanged.
func toBackendError(kind backend.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &backend.Error{Kind: kind, Op: op, Code: pgErr.Code, Message: pgErr.Message, Err: err}
	}
	return backend.Wrap(kind, op, err)
}
