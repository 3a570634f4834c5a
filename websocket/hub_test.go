package websocket

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenAuth(token string) (string, error) {
	if strings.HasPrefix(token, "valid-") {
		return strings.TrimPrefix(token, "valid-"), nil
	}
	return "", errors.New("bad token")
}

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	go hub.Run()

	e := echo.New()
	e.GET("/ws", func(c echo.Context) error { return HandleWebSocket(c, hub, tokenAuth) })
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var n Notification
	require.NoError(t, conn.ReadJSON(&n))
	return n
}

func TestCommissionPushWithQueryToken(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url+"?token=valid-u-1")

	hello := read(t, conn)
	assert.Equal(t, NotificationTypeConnected, hello.Type)
	assert.Equal(t, "u-1", hello.UserID)
	require.Eventually(t, func() bool { return hub.Connected("u-1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.NotifyCommissionEarned("u-1", "You earned 10.00"))
	got := read(t, conn)
	assert.Equal(t, NotificationTypeCommissionEarned, got.Type)
	assert.Equal(t, "You earned 10.00", got.Message)
}

func TestAuthenticateAfterConnecting(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url)

	hello := read(t, conn)
	assert.True(t, hello.RequiresAuth)
	assert.ErrorIs(t, hub.NotifyCommissionEarned("u-2", "msg"), ErrUserNotConnected)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("AUTH:nope")))
	assert.Equal(t, "Authentication failed", read(t, conn).Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("AUTH:valid-u-2")))
	resp := read(t, conn)
	assert.Equal(t, NotificationTypeAuthResponse, resp.Type)
	assert.Equal(t, "u-2", resp.UserID)
	assert.True(t, hub.Connected("u-2"))
}

func TestDisconnectRemovesClient(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url+"?token=valid-u-3")
	read(t, conn)
	require.Eventually(t, func() bool { return hub.Connected("u-3") }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return !hub.Connected("u-3") }, 2*time.Second, 10*time.Millisecond)
}
