package backend

import (
	"errors"
	"net/http"
	"strings"
)

const (
	EnvURL     = "SUPABASE_URL"
	EnvAnonKey = "SUPABASE_ANON_KEY"
)

var ErrNotConfigured = errors.New("backend is not configured")

// ConfigurationError reports which environment values are missing.
// It matches ErrNotConfigured with errors.Is.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) == 0 {
		return ErrNotConfigured.Error()
	}
	return ErrNotConfigured.Error() + ": set " + strings.Join(e.Missing, " and ")
}

func (e *ConfigurationError) Unwrap() error {
	return ErrNotConfigured
}

// Kind classifies a failed backend call.
type Kind string

const (
	KindAuth     Kind = "auth"
	KindQuery    Kind = "query"
	KindMutation Kind = "mutation"
)

// Error is a failure reported by the hosted service. Message is the service's own
// text and is shown to the user unchanged.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap turns a transport failure into an *Error of the given kind.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Err: err}
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		if be.Message != "" {
			return be.Message
		}
		if be.Status != 0 {
			return http.StatusText(be.Status)
		}
	}
	return err.Error()
}

// IsKind reports whether err is a backend *Error of kind.
func IsKind(err error, kind Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == kind
}

// IsUnauthorized reports whether the service rejected the bearer token.
func IsUnauthorized(err error) bool {
	var be *Error
	return errors.As(err, &be) && (be.Status == http.StatusUnauthorized || be.Code == "PGRST301")
}

// IsRejected reports whether the auth service refused a credential, as opposed
// to failing to answer. Only a rejection means a stored session is dead.
func IsRejected(err error) bool {
	var be *Error
	if !errors.As(err, &be) || be.Kind != KindAuth {
		return false
	}
	switch be.Status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return be.Status >= 400 && be.Status < 500
}
