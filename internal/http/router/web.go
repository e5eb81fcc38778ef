package router

import (
	"github.com/gin-gonic/gin"

	"expensehq.app/web/internal/http/handler"
)

func WebRouter(rg *gin.RouterGroup, h *handler.WebHandler) {
	rg.GET("", h.Home)
	rg.POST("/login", h.Login)
	rg.GET("/auth/callback", h.Callback)
	rg.POST("/logout", h.Logout)
	rg.POST("/organizations", h.CreateOrganization)
	rg.POST("/organizations/select", h.SelectOrganization)
	rg.POST("/reports", h.SubmitReport)
	rg.POST("/reports/refresh", h.RefreshReports)
}
