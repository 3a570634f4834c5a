package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Define notification types
const (
	NotificationTypeConnected        = "connected"
	NotificationTypeAuthResponse     = "auth_response"
	NotificationTypeCommissionEarned = "commission_earned"
)

const writeWait = 10 * time.Second

// ErrUserNotConnected is returned when the recipient has no open socket
var ErrUserNotConnected = errors.New("user not connected")

// Notification represents a message sent over WebSocket
type Notification struct {
	Type         string      `json:"type"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
	UserID       string      `json:"userID,omitempty"`
	RequiresAuth bool        `json:"requiresAuth,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID        string
	Conn          *websocket.Conn
	Authenticated bool

	writeMu sync.Mutex
}

// WriteJSON serializes writes; gorilla connections allow one writer at a time.
func (c *Client) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

// Hub maintains the set of active clients and pushes notifications to them
type Hub struct {
	clients                map[string]*Client
	unauthenticatedClients map[*Client]bool
	register               chan *Client
	unregister             chan *Client
	mu                     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:                make(map[string]*Client),
		unauthenticatedClients: make(map[*Client]bool),
		register:               make(chan *Client),
		unregister:             make(chan *Client),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if client.Authenticated && client.UserID != "" {
				if previous, ok := h.clients[client.UserID]; ok && previous != client {
					previous.Conn.Close()
				}
				h.clients[client.UserID] = client
			} else {
				h.unauthenticatedClients[client] = true
			}
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.UserID]; ok && current == client {
				delete(h.clients, client.UserID)
			}
			delete(h.unauthenticatedClients, client)
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Connected reports whether the user has an authenticated socket
func (h *Hub) Connected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// SendToUser sends a message to a specific user
func (h *Hub) SendToUser(userID string, notification Notification) error {
	h.mu.RLock()
	client, ok := h.clients[userID]
	h.mu.RUnlock()

	if !ok {
		return ErrUserNotConnected
	}
	return client.WriteJSON(notification)
}

// AuthenticateClient moves a client from unauthenticated to authenticated state
func (h *Hub) AuthenticateClient(client *Client, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.unauthenticatedClients, client)
	if previous, ok := h.clients[userID]; ok && previous != client {
		previous.Conn.Close()
	}
	client.Authenticated = true
	client.UserID = userID
	h.clients[userID] = client
}

// NotifyCommissionEarned pushes a commission notice to a beneficiary
func (h *Hub) NotifyCommissionEarned(userID, message string) error {
	return h.SendToUser(userID, Notification{
		Type:    NotificationTypeCommissionEarned,
		Message: message,
		UserID:  userID,
	})
}
