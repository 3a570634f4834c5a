// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User types
const (
	UserTypeReseller = "reseller"
	UserTypeAdmin    = "admin"
)

// User is a panel account. Resellers hold a wallet of credits (used to
// provision VPN accounts) and a currency balance.
type User struct {
	ID           primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email        string             `json:"email" bson:"email"`
	FullName     string             `json:"fullName" bson:"fullName"`
	Phone        string             `json:"phone,omitempty" bson:"phone,omitempty"`
	UserType     string             `json:"userType" bson:"userType"`
	IsActive     bool               `json:"isActive" bson:"isActive"`
	ReferralCode string             `json:"referralCode,omitempty" bson:"referralCode,omitempty"`
	Credits      int64              `json:"credits" bson:"credits"`
	Balance      float64            `json:"balance" bson:"balance"`
	FCMToken     string             `json:"fcmToken,omitempty" bson:"fcmToken,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Response is the envelope every handler returns
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
