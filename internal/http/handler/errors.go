package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"expensehq.app/web/common"
	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/expense"
	"expensehq.app/web/internal/organization"
)

func statusFor(err error) int {
	var be *backend.Error
	switch {
	case errors.Is(err, app.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, expense.ErrTitleRequired),
		errors.Is(err, expense.ErrInvalidAmount),
		errors.Is(err, organization.ErrNameRequired),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, common.ErrEmptySlug):
		return http.StatusBadRequest
	case errors.Is(err, organization.ErrUnknownOrganization):
		return http.StatusNotFound
	case errors.Is(err, organization.ErrCreateInFlight),
		errors.Is(err, expense.ErrSubmitInFlight),
		errors.Is(err, expense.ErrNoOrganization):
		return http.StatusConflict
	case errors.Is(err, backend.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.As(err, &be):
		if backend.IsUnauthorized(err) {
			return http.StatusUnauthorized
		}
		if be.Status >= 400 && be.Status < 500 {
			return be.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError responds with the user-facing message of err. Backend messages pass through unchanged.
func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusFor(err), gin.H{"error": backend.Message(err)})
}
