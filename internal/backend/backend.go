// Package backend is the single configured handle to the hosted auth and data
// service. Every component issues its requests through a Handle.
package backend

import (
	"context"

	"expensehq.app/web/internal/model"
)

// LoginLinkRequest asks the auth service to email a one-time login link.
type LoginLinkRequest struct {
	Email         string
	RedirectTo    string
	CodeChallenge string // PKCE S256 challenge; empty sends a plain link
}

// AuthAPI is the hosted auth surface the application uses.
type AuthAPI interface {
	SendLoginLink(ctx context.Context, req LoginLinkRequest) error
	ExchangeCode(ctx context.Context, code, verifier string) (*model.Identity, error)
	VerifyTokenHash(ctx context.Context, tokenHash, linkType string) (*model.Identity, error)
	GetUser(ctx context.Context, accessToken string) (*model.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*model.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// DataAPI is the row-level-secured data surface. Every call acts as identity.
type DataAPI interface {
	// ListMemberships returns membership rows for userID ordered owners first, then by name.
	ListMemberships(ctx context.Context, identity model.Identity, userID string) ([]model.Membership, error)
	// CreateOrganization creates the organization and makes the caller its owner in one step.
	CreateOrganization(ctx context.Context, identity model.Identity, name, slug string) error
	InsertExpenseReport(ctx context.Context, identity model.Identity, report model.NewExpenseReport) error
	// ListExpenseReports returns the organization's reports, newest submitted_on first.
	ListExpenseReports(ctx context.Context, identity model.Identity, organizationID string) ([]model.ExpenseReport, error)
}

// Handle bundles the auth and data surfaces. It is immutable after construction
// and safe to share between goroutines.
type Handle struct {
	auth AuthAPI
	data DataAPI
}

func NewHandle(auth AuthAPI, data DataAPI) *Handle {
	return &Handle{auth: auth, data: data}
}

func (h *Handle) Auth() AuthAPI {
	return h.auth
}

func (h *Handle) Data() DataAPI {
	return h.data
}
