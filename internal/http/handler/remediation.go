package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/http/view"
)

// Remediation answers every request while the backend is unconfigured.
type Remediation struct {
	missing []string
}

func NewRemediation(missing []string) *Remediation {
	return &Remediation{missing: missing}
}

func (h *Remediation) Serve(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/health" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unconfigured",
			"missing": h.missing,
		})
		return
	}
	c.HTML(http.StatusServiceUnavailable, view.PageRemediation, view.Remediation{Missing: h.missing})
}
