// Package supabase talks to the hosted service over its REST surfaces:
// GoTrue under /auth/v1 and PostgREST under /rest/v1.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"expensehq.app/web/internal/backend"
)

const (
	authPath = "/auth/v1"
	restPath = "/rest/v1"
)

// Client implements backend.AuthAPI and backend.DataAPI.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.httpClient.Timeout = d
		}
	}
}

func New(cfg backend.Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid service url %q", cfg.URL)
	}

	c := &Client{
		baseURL: strings.TrimRight(base.String(), "/"),
		anonKey: strings.TrimSpace(cfg.AnonKey),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Builder adapts New to backend.Builder. Data calls go to PostgREST unless data is set.
func Builder(data backend.DataAPI, opts ...Option) backend.Builder {
	return func(cfg backend.Config) (*backend.Handle, error) {
		c, err := New(cfg, opts...)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return backend.NewHandle(c, c), nil
		}
		return backend.NewHandle(c, data), nil
	}
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	prefer string
}

func (c *Client) do(ctx context.Context, kind backend.Kind, op string, r request, out any) error {
	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", op, err)
	}

	bearer := r.token
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.prefer != "" {
		req.Header.Set("Prefer", r.prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return backend.Wrap(kind, op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return backend.Wrap(kind, op, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(kind, op, resp.StatusCode, raw)
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backend.Wrap(kind, op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// errorBody covers the PostgREST ({code,message,details,hint}) and GoTrue
// ({code,error_code,msg} or {error,error_description}) error shapes.
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

func decodeError(kind backend.Kind, op string, status int, raw []byte) error {
	e := &backend.Error{Kind: kind, Op: op, Status: status}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		e.Message = strings.TrimSpace(string(raw))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = body.ErrorCode
	if e.Code == "" && len(body.Code) > 0 {
		var s string
		if json.Unmarshal(body.Code, &s) == nil {
			e.Code = s
		} else {
			e.Code = string(body.Code)
		}
	}

	for _, msg := range []string{body.Message, body.Msg, body.ErrorDescription, body.Error} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
