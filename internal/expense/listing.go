package expense

import (
	"context"
	"log/slog"
	"sync"

	"expensehq.app/web/common/logger"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusError   Status = "error"
	StatusLoaded  Status = "loaded"
)

const EmptyMessage = "No expense reports yet."

// Listing shows the reports of one organization. Every load takes a sequence
// number and only the response to the latest load is applied.
type Listing struct {
	data     backend.DataAPI
	identity model.Identity

	mu      sync.Mutex
	seq     uint64
	closed  bool
	synced  bool
	orgID   string
	refresh uint64
	status  Status
	message string
	reports []model.ExpenseReport
}

func NewListing(data backend.DataAPI, identity model.Identity) *Listing {
	return &Listing{data: data, identity: identity, status: StatusIdle}
}

// Sync loads org's reports when org or refresh differ from the previous Sync.
// A nil org clears the listing.
func (l *Listing) Sync(ctx context.Context, org *model.Organization, refresh uint64) error {
	orgID := ""
	if org != nil {
		orgID = org.ID
	}

	l.mu.Lock()
	if l.closed || (l.synced && orgID == l.orgID && refresh == l.refresh) {
		l.mu.Unlock()
		return nil
	}
	l.synced = true
	l.orgID = orgID
	l.refresh = refresh
	if orgID == "" {
		l.seq++
		l.status = StatusIdle
		l.message = ""
		l.reports = nil
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	return l.Load(ctx, orgID)
}

// Load queries the reports of orgID, newest submission first.
func (l *Listing) Load(ctx context.Context, orgID string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.seq++
	seq := l.seq
	l.status = StatusLoading
	l.message = ""
	l.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component:      "expensehq.expense.listing",
		OrganizationID: logger.Ptr(orgID),
	})

	reports, err := l.data.ListExpenseReports(ctx, l.identity, orgID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || seq != l.seq {
		slog.DebugContext(ctx, "discarding superseded report list", "seq", seq, "latest", l.seq)
		return nil
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to load expense reports", "error", err)
		l.status = StatusError
		l.message = backend.Message(err)
		l.reports = nil
		return err
	}
	l.status = StatusLoaded
	l.reports = reports
	return nil
}

// Close stops any in-flight load from being applied.
func (l *Listing) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
}

// ListingView is what the report table renders.
type ListingView struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Rows    []Row  `json:"rows"`
}

func (l *Listing) View() ListingView {
	l.mu.Lock()
	defer l.mu.Unlock()

	view := ListingView{Status: l.status, Rows: []Row{}}
	switch l.status {
	case StatusError:
		view.Message = l.message
	case StatusLoaded:
		view.Rows = NewRows(l.reports)
		if len(view.Rows) == 0 {
			view.Message = EmptyMessage
		}
	}
	return view
}
