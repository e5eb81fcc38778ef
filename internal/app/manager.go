package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
)

// Manager owns one App per browser session key.
type Manager struct {
	handle   *backend.Handle
	svc      auth.Service
	notifier *auth.Notifier

	mu   sync.Mutex
	apps map[string]*entry
}

type entry struct {
	app      *App
	lastSeen time.Time
}

func NewManager(handle *backend.Handle, svc auth.Service, notifier *auth.Notifier) *Manager {
	return &Manager{
		handle:   handle,
		svc:      svc,
		notifier: notifier,
		apps:     make(map[string]*entry),
	}
}

// Get returns the App for key, creating and mounting it on first use. A mount
// error is returned together with the App, which stays usable signed out.
func (m *Manager) Get(ctx context.Context, key string) (*App, error) {
	now := time.Now()

	m.mu.Lock()
	e, ok := m.apps[key]
	if ok {
		e.lastSeen = now
		m.mu.Unlock()
		return e.app, nil
	}
	a := New(key, m.handle, m.svc, m.notifier)
	m.apps[key] = &entry{app: a, lastSeen: now}
	m.mu.Unlock()

	return a, a.Mount(ctx)
}

// Drop closes and forgets the App for key. The stored session is untouched,
// so a later Get for the same key picks it up again.
func (m *Manager) Drop(key string) {
	m.mu.Lock()
	e, ok := m.apps[key]
	delete(m.apps, key)
	m.mu.Unlock()

	if ok {
		e.app.Close()
	}
}

// Evict drops every App last used before cutoff and returns how many went.
func (m *Manager) Evict(cutoff time.Time) int {
	var stale []*App

	m.mu.Lock()
	for key, e := range m.apps {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.app)
			delete(m.apps, key)
		}
	}
	m.mu.Unlock()

	for _, a := range stale {
		a.Close()
	}
	return len(stale)
}

// Run evicts Apps idle for longer than idle until ctx is done.
func (m *Manager) Run(ctx context.Context, idle time.Duration) {
	ticker := time.NewTicker(max(idle/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Evict(now.Add(-idle)); n > 0 {
				slog.DebugContext(ctx, "evicted idle sessions", "count", n, "remaining", m.Len())
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.apps)
}

// Close drops every App.
func (m *Manager) Close() {
	m.mu.Lock()
	apps := m.apps
	m.apps = make(map[string]*entry)
	m.mu.Unlock()

	for _, e := range apps {
		e.app.Close()
	}
}
