package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/controllers"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/models"
)

// RegisterAffiliateRoutes sets up the reseller-facing affiliate routes
func RegisterAffiliateRoutes(e *echo.Echo, affiliateController *controllers.AffiliateController) {
	affiliateGroup := e.Group("/api/affiliate")
	affiliateGroup.Use(middleware.JWTMiddleware())
	affiliateGroup.Use(middleware.RequireUserType(models.UserTypeReseller, models.UserTypeAdmin))

	affiliateGroup.POST("/register-parent", affiliateController.RegisterParent)
	affiliateGroup.GET("/network-stats", affiliateController.GetNetworkStats)
	affiliateGroup.GET("/commissions", affiliateController.GetCommissions)
	affiliateGroup.GET("/referral-code", affiliateController.GetReferralCode)
	affiliateGroup.GET("/qrcode", affiliateController.GetReferralQRCode)
}
