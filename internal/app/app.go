// Package app wires the components of one browser session together.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"expensehq.app/web/common/logger"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/expense"
	"expensehq.app/web/internal/model"
	"expensehq.app/web/internal/organization"
)

var ErrNotSignedIn = errors.New("not signed in")

// App is the per-browser-session composition root. The registry, form and
// listing exist only while a user is signed in and are rebuilt for every new
// backend session.
type App struct {
	key  string
	data backend.DataAPI
	svc  auth.Service
	gate *auth.Gate
	now  func() time.Time

	mu         sync.Mutex
	identity   *model.Identity
	registry   *organization.Registry
	form       *expense.Form
	listing    *expense.Listing
	active     *model.Organization
	keepActive string
	refresh    uint64
}

func New(key string, handle *backend.Handle, svc auth.Service, notifier *auth.Notifier) *App {
	a := &App{
		key:  key,
		data: handle.Data(),
		svc:  svc,
		now:  time.Now,
	}
	a.gate = auth.NewGate(svc, notifier, key, a.onSession)
	return a
}

func (a *App) Key() string {
	return a.key
}

func (a *App) Gate() *auth.Gate {
	return a.gate
}

// Mount starts listening for session changes and picks up an existing session.
func (a *App) Mount(ctx context.Context) error {
	return a.gate.Mount(ctx)
}

// Close releases the session subscription and tears the signed-in components down.
func (a *App) Close() {
	a.gate.Unmount()
	a.teardown()
}

func (a *App) onSession(identity *model.Identity) {
	if identity == nil {
		a.teardown()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity != nil && a.identity.UserID == identity.UserID && a.identity.AccessToken == identity.AccessToken {
		return
	}

	// Same user with a new token: rebuild, but keep the selection.
	if a.identity != nil && a.identity.UserID == identity.UserID && a.active != nil {
		a.keepActive = a.active.ID
	} else {
		a.keepActive = ""
	}
	if a.listing != nil {
		a.listing.Close()
	}

	a.identity = identity
	a.active = nil
	a.registry = organization.NewRegistry(a.data, *identity, a.onActiveChange)
	a.form = expense.NewForm(a.data, *identity, a.bumpRefresh)
	a.listing = expense.NewListing(a.data, *identity)
}

func (a *App) onActiveChange(org *model.Organization) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = org
}

func (a *App) bumpRefresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refresh++
}

func (a *App) teardown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listing != nil {
		a.listing.Close()
	}
	a.identity = nil
	a.registry = nil
	a.form = nil
	a.listing = nil
	a.active = nil
	a.keepActive = ""
}

type components struct {
	identity   model.Identity
	registry   *organization.Registry
	form       *expense.Form
	listing    *expense.Listing
	keepActive string
	refresh    uint64
}

func (a *App) components() (components, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.identity == nil {
		return components{}, false
	}
	return components{
		identity:   *a.identity,
		registry:   a.registry,
		form:       a.form,
		listing:    a.listing,
		keepActive: a.keepActive,
		refresh:    a.refresh,
	}, true
}

func (a *App) withLogFields(ctx context.Context, c components) context.Context {
	return logger.WithLogFields(ctx, logger.LogFields{
		Component:  "expensehq.app",
		UserID:     logger.Ptr(c.identity.UserID),
		SessionKey: logger.Ptr(a.key),
	})
}

// Sync brings the signed-in components up to date: it re-checks an expired
// session, loads the organizations once and reloads the report list when the
// active organization or the refresh signal changed.
func (a *App) Sync(ctx context.Context) error {
	c, ok := a.components()
	if !ok {
		return nil
	}
	if c.identity.Expired(a.now()) {
		if err := a.gate.Check(ctx); err != nil {
			return err
		}
		if c, ok = a.components(); !ok {
			return nil
		}
	}
	ctx = a.withLogFields(ctx, c)

	var errs []error
	if err := c.registry.Mount(ctx); err != nil {
		errs = append(errs, err)
	}
	if c.keepActive != "" {
		if err := c.registry.Select(c.keepActive); err != nil {
			slog.DebugContext(ctx, "previous organization no longer listed", "organization_id", c.keepActive)
		}
		a.mu.Lock()
		a.keepActive = ""
		a.mu.Unlock()
	}
	if err := c.listing.Sync(ctx, c.registry.Active(), a.Refresh()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequestLoginLink sends a login link for email.
func (a *App) RequestLoginLink(ctx context.Context, email string) error {
	return a.gate.RequestLoginLink(ctx, email)
}

func (a *App) SelectOrganization(ctx context.Context, id string) error {
	c, ok := a.components()
	if !ok {
		return ErrNotSignedIn
	}
	if err := c.registry.Select(id); err != nil {
		return err
	}
	slog.InfoContext(a.withLogFields(ctx, c), "organization selected", "organization_id", id)
	return nil
}

func (a *App) CreateOrganization(ctx context.Context, name, slug string) error {
	c, ok := a.components()
	if !ok {
		return ErrNotSignedIn
	}
	return c.registry.Create(a.withLogFields(ctx, c), name, slug)
}

// SubmitReport submits in for the active organization. Success bumps the refresh signal.
func (a *App) SubmitReport(ctx context.Context, in expense.Input) error {
	c, ok := a.components()
	if !ok {
		return ErrNotSignedIn
	}
	return c.form.Submit(a.withLogFields(ctx, c), c.registry.Active(), in)
}

// RejectReport keeps in on the form next to msg without submitting it.
func (a *App) RejectReport(in expense.Input, msg string) {
	if c, ok := a.components(); ok {
		c.form.Reject(in, msg)
	}
}

// RequestRefresh asks the listing to reload on the next Sync.
func (a *App) RequestRefresh() {
	a.bumpRefresh()
}

// Refresh is the current value of the refresh signal.
func (a *App) Refresh() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refresh
}

// Active returns the active organization as last reported by the registry, or nil.
func (a *App) Active() *model.Organization {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Identity returns the signed-in identity, or nil.
func (a *App) Identity() *model.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identity
}

// SignOut ends the backend session. Whatever the backend answers, the stored
// session, the identity and the active organization are cleared.
func (a *App) SignOut(ctx context.Context) error {
	identity := a.Identity()
	err := a.svc.SignOut(ctx, a.key, identity)
	a.teardown()
	if err != nil {
		slog.WarnContext(ctx, "sign-out finished with errors", "error", err)
	}
	return err
}
