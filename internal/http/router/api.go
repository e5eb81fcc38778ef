package router

import (
	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/http/handler"
)

func APIRouter(rg *gin.RouterGroup, h *handler.APIHandler) {
	rg.GET("/session", h.Session)

	orgs := rg.Group("/organizations")
	orgs.GET("", h.ListOrganizations)
	orgs.POST("", h.CreateOrganization)
	orgs.POST("/:id/select", h.SelectOrganization)

	reports := rg.Group("/reports")
	reports.GET("", h.ListReports)
	reports.POST("", h.SubmitReport)
}
