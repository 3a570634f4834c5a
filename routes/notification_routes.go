package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/controllers"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
)

// RegisterNotificationRoutes registers the inbox and FCM token routes
func RegisterNotificationRoutes(e *echo.Echo, notificationController *controllers.NotificationController) {
	authGroup := e.Group("/api")
	authGroup.Use(middleware.JWTMiddleware())

	authGroup.GET("/notifications", notificationController.ListNotifications)
	authGroup.POST("/users/fcm-token", notificationController.UpdateUserFCMToken)
}
