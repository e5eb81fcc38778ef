package auth

import (
	"sync"

	"expensehq.app/web/internal/model"
)

type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

// SessionEvent is a session observed for one browser session, however it was
// discovered. Identity is nil for EventSignedOut.
type SessionEvent struct {
	Kind     EventKind
	Identity *model.Identity
}

// Notifier fans session changes out to the gates mounted for a browser session.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription is released with Close. Close may be called any number of times.
type Subscription struct {
	notifier *Notifier
	key      string
	fn       func(SessionEvent)
	once     sync.Once
}

func (n *Notifier) Subscribe(key string, fn func(SessionEvent)) *Subscription {
	sub := &Subscription{notifier: n, key: key, fn: fn}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs[key] == nil {
		n.subs[key] = make(map[*Subscription]struct{})
	}
	n.subs[key][sub] = struct{}{}
	return sub
}

// Publish delivers ev to every live subscription for key. Callbacks run on the
// caller's goroutine after the notifier lock is released.
func (n *Notifier) Publish(key string, ev SessionEvent) {
	n.mu.Lock()
	subs := make([]*Subscription, 0, len(n.subs[key]))
	for sub := range n.subs[key] {
		subs = append(subs, sub)
	}
	n.mu.Unlock()

	for _, sub := range subs {
		sub.fn(ev)
	}
}

// Subscribers returns the number of live subscriptions for key.
func (n *Notifier) Subscribers(key string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs[key])
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		n := s.notifier
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[s.key], s)
		if len(n.subs[s.key]) == 0 {
			delete(n.subs, s.key)
		}
	})
}
