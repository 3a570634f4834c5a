package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/controllers"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/models"
)

// RegisterAdminRoutes sets up the admin affiliate management routes
func RegisterAdminRoutes(e *echo.Echo, adminController *controllers.AdminAffiliateController) {
	admin := e.Group("/api/admin/affiliate")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireUserType(models.UserTypeAdmin))

	admin.GET("/config", adminController.GetConfig)
	admin.PUT("/config", adminController.UpdateConfig)
	admin.GET("/network-stats/:userId", adminController.GetUserNetworkStats)
	admin.GET("/commissions/:userId", adminController.GetUserCommissions)
	admin.POST("/sales", adminController.PublishSale)
}
