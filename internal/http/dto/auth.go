package dto

import (
	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
)

type LoginRequest struct {
	Email string `form:"email" json:"email"`
}

// CallbackQuery is what the auth service appends to the login link redirect.
type CallbackQuery struct {
	Code             string `form:"code"`
	TokenHash        string `form:"token_hash"`
	Type             string `form:"type"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

func (q CallbackQuery) Callback() auth.Callback {
	return auth.Callback{
		Code:             q.Code,
		TokenHash:        q.TokenHash,
		Type:             q.Type,
		Error:            q.Error,
		ErrorDescription: q.ErrorDescription,
	}
}

type SessionResponse struct {
	State        auth.State `json:"state"`
	UserEmail    string     `json:"user_email"`
	LoginMessage string     `json:"login_message,omitempty"`
}

func ToSessionResponse(v app.View) SessionResponse {
	return SessionResponse{
		State:        v.State,
		UserEmail:    v.UserEmail,
		LoginMessage: v.LoginMessage,
	}
}
