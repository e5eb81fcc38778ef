package model

import "time"

// Identity is the authenticated user together with the bearer credential
// used for backend calls.
type Identity struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token has passed its expiry.
// A zero ExpiresAt never expires.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// DisplayEmail is the email shown in the page header.
func (i *Identity) DisplayEmail() string {
	if i == nil || i.Email == "" {
		return "Unknown user"
	}
	return i.Email
}
