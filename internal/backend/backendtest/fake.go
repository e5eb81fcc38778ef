// Package backendtest provides an in-memory hosted backend for tests.
// It keeps the server-side guarantees the application relies on: unique slugs,
// owner membership on create, membership checks on report reads and writes,
// and the documented orderings.
package backendtest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

// Fake implements backend.AuthAPI and backend.DataAPI.
type Fake struct {
	mu sync.Mutex

	users         map[string]fakeUser // by email
	tokens        map[string]string   // access token -> user id
	refreshTokens map[string]string   // refresh token -> user id
	organizations map[string]model.Organization
	members       map[string]map[string]bool // org id -> user id -> owner
	reports       []model.ExpenseReport
	codes         map[string]string // login code -> email
	nextID        int

	// Calls counts every API call by operation name.
	Calls map[string]int
	// Fail makes the named operation return err instead of running.
	Fail map[string]error
	// Before runs at the start of the named operation, outside the lock.
	Before map[string]func(ctx context.Context)

	// SentLinks records every login link request.
	SentLinks []backend.LoginLinkRequest
}

type fakeUser struct {
	id    string
	email string
}

func New() *Fake {
	return &Fake{
		users:         make(map[string]fakeUser),
		tokens:        make(map[string]string),
		refreshTokens: make(map[string]string),
		organizations: make(map[string]model.Organization),
		members:       make(map[string]map[string]bool),
		codes:         make(map[string]string),
		Calls:         make(map[string]int),
		Fail:          make(map[string]error),
		Before:        make(map[string]func(ctx context.Context)),
	}
}

// Handle returns a backend.Handle backed by f.
func (f *Fake) Handle() *backend.Handle {
	return backend.NewHandle(f, f)
}

func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.Calls[op]++
	err := f.Fail[op]
	before := f.Before[op]
	f.mu.Unlock()

	if before != nil {
		before(ctx)
	}
	return err
}

func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.Calls {
		total += n
	}
	return total
}

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

// SignIn creates (or reuses) the user for email and returns a live identity.
func (f *Fake) SignIn(email string) model.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signInLocked(email)
}

func (f *Fake) signInLocked(email string) model.Identity {
	u, ok := f.users[email]
	if !ok {
		u = fakeUser{id: f.id("user"), email: email}
		f.users[email] = u
	}
	token := f.id("token")
	refresh := f.id("refresh")
	f.tokens[token] = u.id
	f.refreshTokens[refresh] = u.id
	return model.Identity{
		UserID:       u.id,
		Email:        u.email,
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().Add(time.Hour),
	}
}

// IssueCode returns a login code that ExchangeCode and VerifyTokenHash accept for email.
func (f *Fake) IssueCode(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	code := f.id("code")
	f.codes[code] = email
	return code
}

// AddMember adds userID to an existing organization.
func (f *Fake) AddMember(orgID, userID string, owner bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[orgID] == nil {
		f.members[orgID] = make(map[string]bool)
	}
	f.members[orgID][userID] = owner
}

func (f *Fake) userFor(identity model.Identity) (string, error) {
	userID, ok := f.tokens[identity.AccessToken]
	if !ok {
		return "", &backend.Error{Kind: backend.KindAuth, Status: http.StatusUnauthorized, Code: "PGRST301", Message: "JWT expired"}
	}
	return userID, nil
}

func (f *Fake) SendLoginLink(ctx context.Context, req backend.LoginLinkRequest) error {
	if err := f.enter(ctx, "send_login_link"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SentLinks = append(f.SentLinks, req)
	return nil
}

func (f *Fake) ExchangeCode(ctx context.Context, code, _ string) (*model.Identity, error) {
	if err := f.enter(ctx, "exchange_code"); err != nil {
		return nil, err
	}
	return f.redeem(code)
}

func (f *Fake) VerifyTokenHash(ctx context.Context, tokenHash, _ string) (*model.Identity, error) {
	if err := f.enter(ctx, "verify_token_hash"); err != nil {
		return nil, err
	}
	return f.redeem(tokenHash)
}

func (f *Fake) redeem(code string) (*model.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.codes[code]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindAuth, Status: http.StatusForbidden, Code: "otp_expired", Message: "Email link is invalid or has expired"}
	}
	delete(f.codes, code)
	identity := f.signInLocked(email)
	return &identity, nil
}

func (f *Fake) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	if err := f.enter(ctx, "get_user"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, err := f.userFor(model.Identity{AccessToken: accessToken})
	if err != nil {
		return nil, err
	}
	for _, u := range f.users {
		if u.id == userID {
			return &model.Identity{UserID: u.id, Email: u.email, AccessToken: accessToken}, nil
		}
	}
	return nil, &backend.Error{Kind: backend.KindAuth, Status: http.StatusNotFound, Message: "User not found"}
}

func (f *Fake) Refresh(ctx context.Context, refreshToken string) (*model.Identity, error) {
	if err := f.enter(ctx, "refresh"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refreshTokens[refreshToken]
	if !ok {
		return nil, &backend.Error{Kind: backend.KindAuth, Status: http.StatusBadRequest, Message: "Invalid Refresh Token: Refresh Token Not Found"}
	}
	delete(f.refreshTokens, refreshToken)
	for _, u := range f.users {
		if u.id == userID {
			identity := f.signInLocked(u.email)
			return &identity, nil
		}
	}
	return nil, &backend.Error{Kind: backend.KindAuth, Status: http.StatusNotFound, Message: "User not found"}
}

// ExpireToken invalidates an access token as if its JWT had expired.
func (f *Fake) ExpireToken(accessToken string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, accessToken)
}

func (f *Fake) SignOut(ctx context.Context, accessToken string) error {
	if err := f.enter(ctx, "sign_out"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, accessToken)
	return nil
}

func (f *Fake) ListMemberships(ctx context.Context, identity model.Identity, userID string) ([]model.Membership, error) {
	if err := f.enter(ctx, "list_memberships"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.userFor(identity); err != nil {
		return nil, err
	}

	var rows []model.Membership
	for orgID, members := range f.members {
		owner, ok := members[userID]
		if !ok {
			continue
		}
		org := f.organizations[orgID]
		rows = append(rows, model.Membership{
			OrganizationID:   org.ID,
			OrganizationName: org.Name,
			OrganizationSlug: org.Slug,
			UserID:           userID,
			IsOwner:          owner,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].IsOwner != rows[j].IsOwner {
			return rows[i].IsOwner
		}
		return rows[i].OrganizationName < rows[j].OrganizationName
	})
	return rows, nil
}

func (f *Fake) CreateOrganization(ctx context.Context, identity model.Identity, name, slug string) error {
	if err := f.enter(ctx, "create_organization"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, err := f.userFor(identity)
	if err != nil {
		return err
	}
	for _, org := range f.organizations {
		if org.Slug == slug {
			return &backend.Error{
				Kind:    backend.KindMutation,
				Status:  http.StatusConflict,
				Code:    "23505",
				Message: `duplicate key value violates unique constraint "organizations_slug_key"`,
			}
		}
	}
	org := model.Organization{ID: f.id("org"), Name: name, Slug: slug}
	f.organizations[org.ID] = org
	f.members[org.ID] = map[string]bool{userID: true}
	return nil
}

func (f *Fake) InsertExpenseReport(ctx context.Context, identity model.Identity, report model.NewExpenseReport) error {
	if err := f.enter(ctx, "insert_expense_report"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, err := f.userFor(identity)
	if err != nil {
		return err
	}
	if _, ok := f.members[report.OrganizationID][userID]; !ok {
		return &backend.Error{
			Kind:    backend.KindMutation,
			Status:  http.StatusForbidden,
			Code:    "42501",
			Message: `new row violates row-level security policy for table "expense_reports"`,
		}
	}
	notes := report.Notes
	email := identity.Email
	f.reports = append(f.reports, model.ExpenseReport{
		ID:             f.id("report"),
		OrganizationID: report.OrganizationID,
		Title:          report.Title,
		SubmittedOn:    report.SubmittedOn,
		TotalAmount:    report.TotalAmount,
		Notes:          &notes,
		CreatedAt:      time.Now().UTC(),
		CreatedByEmail: &email,
	})
	return nil
}

func (f *Fake) ListExpenseReports(ctx context.Context, identity model.Identity, organizationID string) ([]model.ExpenseReport, error) {
	if err := f.enter(ctx, "list_expense_reports"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, err := f.userFor(identity)
	if err != nil {
		return nil, err
	}
	if _, ok := f.members[organizationID][userID]; !ok {
		return []model.ExpenseReport{}, nil
	}

	rows := []model.ExpenseReport{}
	for _, r := range f.reports {
		if r.OrganizationID == organizationID {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].SubmittedOn.Time().After(rows[j].SubmittedOn.Time())
	})
	return rows, nil
}
