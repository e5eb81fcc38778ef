package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/app"
	"expensehq.app/web/internal/expense"
	"expensehq.app/web/internal/http/dto"
	"expensehq.app/web/internal/model"
)

// APIHandler serves the JSON API on the same per-browser state as the pages.
type APIHandler struct {
	apps *app.Manager
}

func NewAPIHandler(apps *app.Manager) *APIHandler {
	return &APIHandler{apps: apps}
}

func (h *APIHandler) signedIn(c *gin.Context) (*app.App, bool) {
	a := appFor(c, h.apps)
	if a.Identity() == nil {
		writeError(c, app.ErrNotSignedIn)
		return nil, false
	}
	return a, true
}

func (h *APIHandler) Session(c *gin.Context) {
	a := appFor(c, h.apps)
	c.JSON(http.StatusOK, dto.ToSessionResponse(a.View()))
}

func (h *APIHandler) ListOrganizations(c *gin.Context) {
	a, ok := h.signedIn(c)
	if !ok {
		return
	}
	_ = a.Sync(c.Request.Context())

	v := a.View()
	status := http.StatusOK
	if v.OrganizationMessage != "" && len(v.Organizations) == 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, dto.ToOrganizationsResponse(v))
}

func (h *APIHandler) CreateOrganization(c *gin.Context) {
	a, ok := h.signedIn(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req dto.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := a.CreateOrganization(ctx, req.Name, req.Slug); err != nil {
		writeError(c, err)
		return
	}
	_ = a.Sync(ctx)
	c.JSON(http.StatusCreated, dto.ToOrganizationsResponse(a.View()))
}

func (h *APIHandler) SelectOrganization(c *gin.Context) {
	a, ok := h.signedIn(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := a.SelectOrganization(ctx, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	_ = a.Sync(ctx)
	c.JSON(http.StatusOK, dto.ToOrganizationsResponse(a.View()))
}

func (h *APIHandler) ListReports(c *gin.Context) {
	a, ok := h.signedIn(c)
	if !ok {
		return
	}
	if c.Query("refresh") == "true" {
		a.RequestRefresh()
	}
	if err := a.Sync(c.Request.Context()); err != nil && a.View().Reports.Status == expense.StatusError {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToReportsResponse(a.View()))
}

func (h *APIHandler) SubmitReport(c *gin.Context) {
	a, ok := h.signedIn(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	in := expense.Input{
		Title:       req.Title,
		SubmittedOn: model.Today(),
		Amount:      req.TotalAmount,
		Notes:       req.Notes,
	}
	if strings.TrimSpace(req.SubmittedOn) != "" {
		d, err := model.ParseDate(req.SubmittedOn)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": expense.InvalidDateMessage})
			return
		}
		in.SubmittedOn = d
	}

	if err := a.SubmitReport(ctx, in); err != nil {
		writeError(c, err)
		return
	}
	_ = a.Sync(ctx)
	c.JSON(http.StatusCreated, dto.ToReportsResponse(a.View()))
}
