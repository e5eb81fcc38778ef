// Package auth moves a browser session between signed-out, link-sent and
// signed-in, keeping the backend session in the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
	"expensehq.app/web/internal/session"
)

const callbackPath = "/auth/callback"

var ErrMissingCode = errors.New("login link is missing its code")

// Callback carries the query parameters of a followed login link.
type Callback struct {
	Code             string
	TokenHash        string
	Type             string
	Error            string
	ErrorDescription string
}

type Service interface {
	// SendLoginLink stores a fresh PKCE verifier for key and asks the backend to
	// email a login link for it.
	SendLoginLink(ctx context.Context, key, email string) error
	// CompleteLogin redeems a followed link, stores the session and publishes EventSignedIn.
	CompleteLogin(ctx context.Context, key string, cb Callback) (*model.Identity, error)
	// Current returns the stored identity after confirming it with the backend,
	// refreshing an expired token once. It returns nil when there is no usable session.
	Current(ctx context.Context, key string) (*model.Identity, error)
	// SignOut ends the backend session and always forgets it locally.
	SignOut(ctx context.Context, key string, identity *model.Identity) error
}

type authService struct {
	handle   *backend.Handle
	store    session.Store
	notifier *Notifier
	siteURL  string
	now      func() time.Time
}

func NewService(handle *backend.Handle, store session.Store, notifier *Notifier, siteURL string) Service {
	return &authService{
		handle:   handle,
		store:    store,
		notifier: notifier,
		siteURL:  siteURL,
		now:      time.Now,
	}
}

func (s *authService) SendLoginLink(ctx context.Context, key, email string) error {
	verifier, err := newVerifier()
	if err != nil {
		return fmt.Errorf("generating code verifier: %w", err)
	}

	rec, err := s.load(ctx, key)
	if err != nil {
		return err
	}
	rec.CodeVerifier = verifier
	if err := s.store.Save(ctx, key, rec); err != nil {
		return fmt.Errorf("saving code verifier: %w", err)
	}

	return s.handle.Auth().SendLoginLink(ctx, backend.LoginLinkRequest{
		Email:         email,
		RedirectTo:    s.siteURL + callbackPath,
		CodeChallenge: challenge(verifier),
	})
}

func (s *authService) CompleteLogin(ctx context.Context, key string, cb Callback) (*model.Identity, error) {
	if cb.Error != "" {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = cb.Error
		}
		return nil, &backend.Error{Kind: backend.KindAuth, Op: "callback", Code: cb.Error, Message: msg}
	}

	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	var identity *model.Identity
	switch {
	case cb.TokenHash != "":
		identity, err = s.handle.Auth().VerifyTokenHash(ctx, cb.TokenHash, cb.Type)
	case cb.Code != "":
		identity, err = s.handle.Auth().ExchangeCode(ctx, cb.Code, rec.CodeVerifier)
	default:
		return nil, ErrMissingCode
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(ctx, key, session.Record{Identity: identity}); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	slog.InfoContext(ctx, "user signed in", "user_id", identity.UserID)
	s.notifier.Publish(key, SessionEvent{Kind: EventSignedIn, Identity: identity})
	return identity, nil
}

func (s *authService) Current(ctx context.Context, key string) (*model.Identity, error) {
	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.Identity == nil {
		return nil, nil
	}

	identity := rec.Identity
	refreshed := false
	if identity.Expired(s.now()) {
		if identity, err = s.refresh(ctx, key, identity); err != nil || identity == nil {
			return nil, err
		}
		refreshed = true
	}

	user, err := s.handle.Auth().GetUser(ctx, identity.AccessToken)
	if err != nil && backend.IsUnauthorized(err) && !refreshed {
		if identity, err = s.refresh(ctx, key, identity); err != nil || identity == nil {
			return nil, err
		}
		user, err = s.handle.Auth().GetUser(ctx, identity.AccessToken)
	}
	if err != nil {
		if backend.IsRejected(err) {
			slog.WarnContext(ctx, "stored session rejected", "error", err)
			return nil, s.forget(ctx, key)
		}
		return nil, err
	}

	identity.UserID = user.UserID
	if user.Email != "" {
		identity.Email = user.Email
	}
	return identity, nil
}

// refresh trades the refresh token for a new session. A rejected refresh token
// forgets the session and returns a nil identity; an unreachable service keeps it.
func (s *authService) refresh(ctx context.Context, key string, identity *model.Identity) (*model.Identity, error) {
	if identity.RefreshToken == "" {
		return nil, s.forget(ctx, key)
	}

	next, err := s.handle.Auth().Refresh(ctx, identity.RefreshToken)
	if err != nil {
		if backend.IsRejected(err) {
			slog.WarnContext(ctx, "session refresh rejected", "error", err)
			return nil, s.forget(ctx, key)
		}
		return nil, err
	}

	if err := s.store.Save(ctx, key, session.Record{Identity: next}); err != nil {
		return nil, fmt.Errorf("saving refreshed session: %w", err)
	}
	return next, nil
}

func (s *authService) SignOut(ctx context.Context, key string, identity *model.Identity) error {
	var signOutErr error
	if identity != nil && identity.AccessToken != "" {
		signOutErr = s.handle.Auth().SignOut(ctx, identity.AccessToken)
		if signOutErr != nil {
			slog.WarnContext(ctx, "backend sign-out failed", "error", signOutErr)
		}
	}

	err := s.forget(ctx, key)
	s.notifier.Publish(key, SessionEvent{Kind: EventSignedOut})
	return errors.Join(signOutErr, err)
}

func (s *authService) forget(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *authService) load(ctx context.Context, key string) (session.Record, error) {
	rec, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return session.Record{}, nil
		}
		return session.Record{}, fmt.Errorf("loading session: %w", err)
	}
	return *rec, nil
}
