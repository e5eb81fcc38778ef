package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/model"
)

type otpRequest struct {
	Email               string `json:"email"`
	CreateUser          bool   `json:"create_user"`
	CodeChallenge       string `json:"code_challenge,omitempty"`
	CodeChallengeMethod string `json:"code_challenge_method,omitempty"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         userResponse `json:"user"`
}

func (s sessionResponse) identity(now time.Time) *model.Identity {
	expires := time.Time{}
	switch {
	case s.ExpiresAt > 0:
		expires = time.Unix(s.ExpiresAt, 0).UTC()
	case s.ExpiresIn > 0:
		expires = now.Add(time.Duration(s.ExpiresIn) * time.Second).UTC()
	}
	return &model.Identity{
		UserID:       s.User.ID,
		Email:        s.User.Email,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    expires,
	}
}

func (c *Client) SendLoginLink(ctx context.Context, req backend.LoginLinkRequest) error {
	query := url.Values{}
	if req.RedirectTo != "" {
		query.Set("redirect_to", req.RedirectTo)
	}

	body := otpRequest{Email: req.Email, CreateUser: true}
	if req.CodeChallenge != "" {
		body.CodeChallenge = req.CodeChallenge
		body.CodeChallengeMethod = "s256"
	}

	return c.do(ctx, backend.KindAuth, "send_login_link", request{
		method: http.MethodPost,
		path:   authPath + "/otp",
		query:  query,
		body:   body,
	}, nil)
}

func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*model.Identity, error) {
	return c.token(ctx, "exchange_code", "pkce", map[string]string{
		"auth_code":     code,
		"code_verifier": verifier,
	})
}

func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.Identity, error) {
	return c.token(ctx, "refresh", "refresh_token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (c *Client) token(ctx context.Context, op, grantType string, body map[string]string) (*model.Identity, error) {
	var resp sessionResponse
	err := c.do(ctx, backend.KindAuth, op, request{
		method: http.MethodPost,
		path:   authPath + "/token",
		query:  url.Values{"grant_type": {grantType}},
		body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.identity(time.Now()), nil
}

func (c *Client) VerifyTokenHash(ctx context.Context, tokenHash, linkType string) (*model.Identity, error) {
	if linkType == "" {
		linkType = "magiclink"
	}
	var resp sessionResponse
	err := c.do(ctx, backend.KindAuth, "verify_token_hash", request{
		method: http.MethodPost,
		path:   authPath + "/verify",
		body: map[string]string{
			"type":       linkType,
			"token_hash": tokenHash,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.identity(time.Now()), nil
}

func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	var resp userResponse
	err := c.do(ctx, backend.KindAuth, "get_user", request{
		method: http.MethodGet,
		path:   authPath + "/user",
		token:  accessToken,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &model.Identity{UserID: resp.ID, Email: resp.Email, AccessToken: accessToken}, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.do(ctx, backend.KindAuth, "sign_out", request{
		method: http.MethodPost,
		path:   authPath + "/logout",
		token:  accessToken,
	}, nil)
}
