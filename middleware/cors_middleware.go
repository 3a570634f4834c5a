package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

// panelOrigins are the reseller and admin front ends plus local dev servers
var panelOrigins = []string{
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:8080",
	"https://panel.vpnreseller.app",
	"https://admin.vpnreseller.app",
}

// PanelCORSConfig allows the panel front ends, plus any comma-separated
// origins in CORS_ALLOWED_ORIGINS, to call the API with a bearer token.
// Only the verbs and headers the API routes use are allowed.
func PanelCORSConfig() echoMiddleware.CORSConfig {
	return echoMiddleware.CORSConfig{
		AllowOrigins: allowedOrigins(os.Getenv("CORS_ALLOWED_ORIGINS")),
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
		},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentLength, echo.HeaderContentType},
		MaxAge:           86400,
	}
}

func allowedOrigins(extra string) []string {
	origins := append([]string(nil), panelOrigins...)
	for _, origin := range strings.Split(extra, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// GlobalCORS applies PanelCORSConfig
func GlobalCORS() echo.MiddlewareFunc {
	return echoMiddleware.CORSWithConfig(PanelCORSConfig())
}
