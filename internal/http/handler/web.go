package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/auth"
	"expensehq.app/web/internal/backend"
	"expensehq.app/web/internal/expense"
	"expensehq.app/web/internal/http/dto"
	"expensehq.app/web/internal/http/middleware"
	"expensehq.app/web/internal/http/view"
)

// WebHandler serves the HTML pages. Every form posts, updates the browser
// session's App and redirects back to the dashboard, which renders the App's state.
type WebHandler struct {
	apps        *app.Manager
	authService auth.Service
}

func NewWebHandler(apps *app.Manager, authService auth.Service) *WebHandler {
	return &WebHandler{apps: apps, authService: authService}
}

func appFor(c *gin.Context, apps *app.Manager) *app.App {
	ctx := c.Request.Context()
	a, err := apps.Get(ctx, middleware.GetSessionKey(ctx))
	if err != nil {
		slog.WarnContext(ctx, "session check failed", "error", err)
	}
	return a
}

func (h *WebHandler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	if err := a.Sync(ctx); err != nil {
		slog.WarnContext(ctx, "dashboard sync failed", "error", err)
	}

	v := a.View()
	if !v.Authenticated() {
		c.HTML(http.StatusOK, view.PageLogin, v)
		return
	}
	c.HTML(http.StatusOK, view.PageDashboard, v)
}

func (h *WebHandler) Login(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(ctx, "malformed login form", "error", err)
	}

	if err := a.RequestLoginLink(ctx, req.Email); err != nil {
		slog.InfoContext(ctx, "login link request failed", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) Callback(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	var q dto.CallbackQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		slog.DebugContext(ctx, "malformed callback query", "error", err)
	}

	if _, err := h.authService.CompleteLogin(ctx, a.Key(), q.Callback()); err != nil {
		slog.WarnContext(ctx, "login link rejected", "error", err)
		a.Gate().SetMessage(backend.Message(err))
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	if err := a.SignOut(ctx); err != nil {
		slog.WarnContext(ctx, "sign-out incomplete", "error", err)
	}
	h.apps.Drop(a.Key())
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) CreateOrganization(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	var req dto.CreateOrganizationRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(ctx, "malformed organization form", "error", err)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if err := a.CreateOrganization(ctx, req.Name, req.Slug); err != nil {
		slog.InfoContext(ctx, "organization not created", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) SelectOrganization(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	var req dto.SelectOrganizationRequest
	if err := c.ShouldBind(&req); err != nil {
		slog.DebugContext(ctx, "malformed organization selection", "error", err)
	} else if err := a.SelectOrganization(ctx, req.OrganizationID); err != nil {
		slog.InfoContext(ctx, "organization not selected", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) SubmitReport(c *gin.Context) {
	ctx := c.Request.Context()
	a := appFor(c, h.apps)

	var form dto.ReportForm
	if err := c.ShouldBind(&form); err != nil {
		slog.DebugContext(ctx, "malformed report form", "error", err)
	}

	in, err := expense.ParseInput(form.Title, form.SubmittedOn, form.TotalAmount, form.Notes)
	if err != nil {
		msg := expense.InvalidDateMessage
		if errors.Is(err, expense.ErrInvalidAmount) {
			msg = expense.InvalidAmountMessage
		}
		a.RejectReport(in, msg)
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	if err := a.SubmitReport(ctx, in); err != nil {
		slog.InfoContext(ctx, "expense report not submitted", "error", err)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *WebHandler) RefreshReports(c *gin.Context) {
	appFor(c, h.apps).RequestRefresh()
	c.Redirect(http.StatusSeeOther, "/")
}
