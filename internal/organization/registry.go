// Package organization tracks the organizations the signed-in user belongs to
// and which one is active.
package organization

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"expensehq.app/web/common"
	"expensehq.app/web/common/logger"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

var (
	ErrCreateInFlight      = errors.New("an organization is already being created")
	ErrNameRequired        = errors.New("organization name is required")
	ErrUnknownOrganization = errors.New("organization not found")
)

const NameRequiredMessage = "Organization name is required."

// Registry holds the membership list in backend order: owners first, then by name.
// The active organization is tracked by id and never reorders the list.
type Registry struct {
	data     backend.DataAPI
	identity model.Identity
	onChange func(*model.Organization)

	mu         sync.Mutex
	orgs       []model.Organization
	selectedID string
	notifiedID string
	message    string
	mounted    bool
	creating   bool
	nameInput  string
	slugInput  string
}

// NewRegistry returns an empty registry for identity. onChange is called with the
// new active organization whenever its id changes, and with nil when there is none.
func NewRegistry(data backend.DataAPI, identity model.Identity, onChange func(*model.Organization)) *Registry {
	return &Registry{data: data, identity: identity, onChange: onChange}
}

// Mount loads the list the first time it is called.
func (r *Registry) Mount(ctx context.Context) error {
	r.mu.Lock()
	if r.mounted {
		r.mu.Unlock()
		return nil
	}
	r.mounted = true
	r.mu.Unlock()

	return r.Load(ctx)
}

// Load replaces the list with the backend's and clears any selection. On failure
// the previous list stays visible next to the error message.
func (r *Registry) Load(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "expensehq.organization.registry",
		UserID:    logger.Ptr(r.identity.UserID),
	})

	rows, err := r.data.ListMemberships(ctx, r.identity, r.identity.UserID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load organizations", "error", err)
		r.mu.Lock()
		r.message = backend.Message(err)
		r.mu.Unlock()
		return err
	}

	orgs := make([]model.Organization, 0, len(rows))
	for _, row := range rows {
		orgs = append(orgs, row.Organization())
	}

	r.mu.Lock()
	r.orgs = orgs
	r.selectedID = ""
	r.message = ""
	r.mu.Unlock()

	r.notify()
	return nil
}

// Select makes id the active organization.
func (r *Registry) Select(id string) error {
	r.mu.Lock()
	if r.indexLocked(id) < 0 {
		r.mu.Unlock()
		return ErrUnknownOrganization
	}
	r.selectedID = id
	r.mu.Unlock()

	r.notify()
	return nil
}

// Create creates an organization owned by the caller and reloads the list.
// A blank slug is derived from the name. Inputs are kept when creation fails.
func (r *Registry) Create(ctx context.Context, name, slug string) error {
	r.mu.Lock()
	if r.creating {
		r.mu.Unlock()
		return ErrCreateInFlight
	}
	r.creating = true
	r.nameInput, r.slugInput = name, slug
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.creating = false
		r.mu.Unlock()
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		r.setMessage(NameRequiredMessage)
		return ErrNameRequired
	}

	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		derived, err := common.Slugify(name, "")
		if err != nil {
			r.setMessage(err.Error())
			return err
		}
		slug = derived
	}

	if err := r.data.CreateOrganization(ctx, r.identity, name, slug); err != nil {
		slog.WarnContext(ctx, "failed to create organization", "error", err, "slug", slug)
		r.setMessage(backend.Message(err))
		return err
	}

	slog.InfoContext(ctx, "organization created", "slug", slug)
	r.mu.Lock()
	r.nameInput, r.slugInput = "", ""
	r.mu.Unlock()

	return r.Load(ctx)
}

func (r *Registry) notify() {
	r.mu.Lock()
	active := r.activeLocked()
	id := ""
	if active != nil {
		id = active.ID
	}
	changed := id != r.notifiedID
	r.notifiedID = id
	r.mu.Unlock()

	if changed && r.onChange != nil {
		r.onChange(active)
	}
}

func (r *Registry) setMessage(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.message = msg
}

func (r *Registry) indexLocked(id string) int {
	for i, org := range r.orgs {
		if org.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) activeLocked() *model.Organization {
	if len(r.orgs) == 0 {
		return nil
	}
	i := r.indexLocked(r.selectedID)
	if i < 0 {
		i = 0
	}
	org := r.orgs[i]
	return &org
}

// Active returns the selected organization, falling back to the first in backend
// order. It is nil when the user belongs to no organization.
func (r *Registry) Active() *model.Organization {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeLocked()
}

// Organizations returns the list for display: the active organization first,
// then the rest in backend order.
func (r *Registry) Organizations() []model.Organization {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.activeLocked()
	if active == nil {
		return []model.Organization{}
	}
	out := make([]model.Organization, 0, len(r.orgs))
	out = append(out, *active)
	for _, org := range r.orgs {
		if org.ID != active.ID {
			out = append(out, org)
		}
	}
	return out
}

// BackendOrder returns the list exactly as the backend ordered it.
func (r *Registry) BackendOrder() []model.Organization {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Organization(nil), r.orgs...)
}

func (r *Registry) Message() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.message
}

func (r *Registry) Creating() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creating
}

// Inputs returns the create form values as last typed.
func (r *Registry) Inputs() (name, slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nameInput, r.slugInput
}
