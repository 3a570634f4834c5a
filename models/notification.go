package models

import (
	"time"
)

// Notification types
const (
	NotificationTypeCommission = "commission_earned"
)

// Notification model
type Notification struct {
	ID        string      `json:"id" bson:"_id"`
	UserID    string      `json:"userId" bson:"userId"`       // The user who receives the notification
	Title     string      `json:"title" bson:"title"`         // Notification title
	Message   string      `json:"message" bson:"message"`     // Notification message
	Type      string      `json:"type" bson:"type"`           // Notification type (e.g., "commission_earned")
	Data      interface{} `json:"data,omitempty" bson:"data"` // Optional additional data
	IsRead    bool        `json:"isRead" bson:"isRead"`       // Whether the notification has been read
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"` // Timestamp of notification creation
}
