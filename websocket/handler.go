package websocket

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Authenticator resolves a bearer token to a user ID
type Authenticator func(token string) (string, error)

// HandleWebSocket upgrades the connection. A client authenticates either with
// a ?token= query parameter or by sending "AUTH:<token>" after connecting.
func HandleWebSocket(c echo.Context, hub *Hub, authenticate Authenticator) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{Conn: conn}
	if token := c.QueryParam("token"); token != "" {
		if userID, err := authenticate(token); err == nil {
			client.UserID = userID
			client.Authenticated = true
		} else {
			c.Logger().Warnf("WebSocket token rejected: %v", err)
		}
	}

	hub.register <- client

	if client.Authenticated {
		client.WriteJSON(Notification{
			Type:    NotificationTypeConnected,
			Message: "WebSocket connection established",
			UserID:  client.UserID,
		})
	} else {
		client.WriteJSON(Notification{
			Type:         NotificationTypeConnected,
			Message:      "WebSocket connection established. Please authenticate to receive notifications.",
			RequiresAuth: true,
		})
	}

	go func() {
		defer func() {
			hub.unregister <- client
		}()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}

			messageStr := string(message)
			if !strings.HasPrefix(messageStr, "AUTH:") {
				continue
			}
			userID, err := authenticate(strings.TrimPrefix(messageStr, "AUTH:"))
			if err != nil {
				client.WriteJSON(Notification{
					Type:         NotificationTypeAuthResponse,
					Message:      "Authentication failed",
					RequiresAuth: true,
				})
				continue
			}
			hub.AuthenticateClient(client, userID)
			client.WriteJSON(Notification{
				Type:    NotificationTypeAuthResponse,
				Message: "Authenticated",
				UserID:  userID,
			})
		}
	}()

	return nil
}
