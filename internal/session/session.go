// Package session keeps the hosted backend session of each browser session on
// the server. The browser only ever holds an opaque key.
package session

import (
	"context"
	"errors"

	"expensehq.app/web/internal/model"
)

var ErrNotFound = errors.New("session not found")

// Record is everything stored for one browser session.
type Record struct {
	Identity *model.Identity `json:"identity,omitempty"`
	// CodeVerifier is the PKCE verifier of the last login link sent from this browser.
	CodeVerifier string `json:"code_verifier,omitempty"`
}

type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, rec Record) error
	Delete(ctx context.Context, key string) error
}
