package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"sync"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLinkSent        State = "link_sent"
	StateAuthenticated   State = "authenticated"
)

const (
	LinkSentMessage     = "Check your email for the login link."
	InvalidEmailMessage = "Enter a valid email address."
)

var ErrInvalidEmail = errors.New("invalid email address")

// Gate is the auth state of one browser session. Pushed session events and the
// eager check on Mount both go through observe.
type Gate struct {
	svc       Service
	notifier  *Notifier
	key       string
	onSession func(*model.Identity)

	mu       sync.Mutex
	state    State
	message  string
	identity *model.Identity
	sub      *Subscription
}

// NewGate returns an unmounted gate. onSession receives the identity on every
// observed sign-in and nil on sign-out.
func NewGate(svc Service, notifier *Notifier, key string, onSession func(*model.Identity)) *Gate {
	return &Gate{
		svc:       svc,
		notifier:  notifier,
		key:       key,
		onSession: onSession,
		state:     StateUnauthenticated,
	}
}

// Mount subscribes to session events for the gate's key and then checks once
// for an existing session. Mounting a mounted gate does nothing.
func (g *Gate) Mount(ctx context.Context) error {
	g.mu.Lock()
	if g.sub != nil {
		g.mu.Unlock()
		return nil
	}
	g.sub = g.notifier.Subscribe(g.key, g.observe)
	g.mu.Unlock()

	return g.Check(ctx)
}

// Check looks up the stored session once. A usable session is observed as a
// sign-in; losing the session while authenticated is observed as a sign-out.
func (g *Gate) Check(ctx context.Context) error {
	identity, err := g.svc.Current(ctx, g.key)
	if err != nil {
		return err
	}
	if identity != nil {
		g.observe(SessionEvent{Kind: EventSignedIn, Identity: identity})
	} else if g.State() == StateAuthenticated {
		g.observe(SessionEvent{Kind: EventSignedOut})
	}
	return nil
}

// Unmount releases the subscription. Events published afterwards are ignored.
func (g *Gate) Unmount() {
	g.mu.Lock()
	sub := g.sub
	g.sub = nil
	g.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

func (g *Gate) observe(ev SessionEvent) {
	g.mu.Lock()
	if g.sub == nil {
		g.mu.Unlock()
		return
	}
	switch ev.Kind {
	case EventSignedIn:
		if ev.Identity == nil {
			g.mu.Unlock()
			return
		}
		g.state = StateAuthenticated
		g.identity = ev.Identity
		g.message = ""
	case EventSignedOut:
		g.state = StateUnauthenticated
		g.identity = nil
	}
	identity := g.identity
	g.mu.Unlock()

	if g.onSession != nil {
		g.onSession(identity)
	}
}

// RequestLoginLink asks for a login link for email. It can be called again at
// any time, including after a link was sent.
func (g *Gate) RequestLoginLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		g.SetMessage(InvalidEmailMessage)
		return ErrInvalidEmail
	}

	if err := g.svc.SendLoginLink(ctx, g.key, email); err != nil {
		g.SetMessage(backend.Message(err))
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.message = LinkSentMessage
	if g.state == StateUnauthenticated {
		g.state = StateLinkSent
	}
	return nil
}

// SetMessage replaces the message shown on the login form.
func (g *Gate) SetMessage(msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.message = msg
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Message is the last confirmation or error shown on the login form.
func (g *Gate) Message() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.message
}

func (g *Gate) Identity() *model.Identity {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identity
}

func (g *Gate) Mounted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sub != nil
}
