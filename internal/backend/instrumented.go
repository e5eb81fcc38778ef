package backend

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"expensehq.app/web/common/logger"
	"expensehq.app/web/internal/model"
)

// Instrument wraps both surfaces of h with spans, debug logs and metrics.
func Instrument(h *Handle, m *Metrics) *Handle {
	return NewHandle(
		&instrumentedAuth{next: h.Auth(), metrics: m},
		&instrumentedData{next: h.Data(), metrics: m},
	)
}

func track(ctx context.Context, m *Metrics, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	sc := logger.StartSpan(ctx, "backend."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	start := time.Now()
	return sc.Context(), func(err error) {
		if err != nil {
			sc.RecordError(err)
			slog.DebugContext(sc.Context(), "backend call failed", "op", op, "error", err)
		}
		m.observe(op, start, err)
		sc.End()
	}
}

type instrumentedAuth struct {
	next    AuthAPI
	metrics *Metrics
}

func (a *instrumentedAuth) SendLoginLink(ctx context.Context, req LoginLinkRequest) (err error) {
	ctx, done := track(ctx, a.metrics, "send_login_link")
	defer func() { done(err) }()
	return a.next.SendLoginLink(ctx, req)
}

func (a *instrumentedAuth) ExchangeCode(ctx context.Context, code, verifier string) (_ *model.Identity, err error) {
	ctx, done := track(ctx, a.metrics, "exchange_code")
	defer func() { done(err) }()
	return a.next.ExchangeCode(ctx, code, verifier)
}

func (a *instrumentedAuth) VerifyTokenHash(ctx context.Context, tokenHash, linkType string) (_ *model.Identity, err error) {
	ctx, done := track(ctx, a.metrics, "verify_token_hash", attribute.String("link_type", linkType))
	defer func() { done(err) }()
	return a.next.VerifyTokenHash(ctx, tokenHash, linkType)
}

func (a *instrumentedAuth) GetUser(ctx context.Context, accessToken string) (_ *model.Identity, err error) {
	ctx, done := track(ctx, a.metrics, "get_user")
	defer func() { done(err) }()
	return a.next.GetUser(ctx, accessToken)
}

func (a *instrumentedAuth) Refresh(ctx context.Context, refreshToken string) (_ *model.Identity, err error) {
	ctx, done := track(ctx, a.metrics, "refresh")
	defer func() { done(err) }()
	return a.next.Refresh(ctx, refreshToken)
}

func (a *instrumentedAuth) SignOut(ctx context.Context, accessToken string) (err error) {
	ctx, done := track(ctx, a.metrics, "sign_out")
	defer func() { done(err) }()
	return a.next.SignOut(ctx, accessToken)
}

type instrumentedData struct {
	next    DataAPI
	metrics *Metrics
}

func (d *instrumentedData) ListMemberships(ctx context.Context, identity model.Identity, userID string) (_ []model.Membership, err error) {
	ctx, done := track(ctx, d.metrics, "list_memberships")
	defer func() { done(err) }()
	return d.next.ListMemberships(ctx, identity, userID)
}

func (d *instrumentedData) CreateOrganization(ctx context.Context, identity model.Identity, name, slug string) (err error) {
	ctx, done := track(ctx, d.metrics, "create_organization", attribute.String("slug", slug))
	defer func() { done(err) }()
	return d.next.CreateOrganization(ctx, identity, name, slug)
}

func (d *instrumentedData) InsertExpenseReport(ctx context.Context, identity model.Identity, report model.NewExpenseReport) (err error) {
	ctx, done := track(ctx, d.metrics, "insert_expense_report", attribute.String("organization_id", report.OrganizationID))
	defer func() { done(err) }()
	return d.next.InsertExpenseReport(ctx, identity, report)
}

func (d *instrumentedData) ListExpenseReports(ctx context.Context, identity model.Identity, organizationID string) (_ []model.ExpenseReport, err error) {
	ctx, done := track(ctx, d.metrics, "list_expense_reports", attribute.String("organization_id", organizationID))
	defer func() { done(err) }()
	return d.next.ListExpenseReports(ctx, identity, organizationID)
}
