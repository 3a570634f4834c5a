package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HSouheill/vpn_reseller_backend/controllers"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/websocket"
)

// Controllers bundles every HTTP controller the API serves
type Controllers struct {
	Affiliate     *controllers.AffiliateController
	Admin         *controllers.AdminAffiliateController
	Notifications *controllers.NotificationController
}

// SetupRoutes configures all API routes by calling individual route registration functions
func SetupRoutes(e *echo.Echo, ctrl Controllers, hub *websocket.Hub, gatherer prometheus.Gatherer, storage string) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"storage": storage,
		})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// Token is checked inside the handler so clients can authenticate after connecting
	e.GET("/api/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub, authenticateSocket)
	})

	RegisterAffiliateRoutes(e, ctrl.Affiliate)
	RegisterAdminRoutes(e, ctrl.Admin)
	RegisterNotificationRoutes(e, ctrl.Notifications)
}

func authenticateSocket(token string) (string, error) {
	claims, err := middleware.ParseToken(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}
