package services

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// FCMClient is satisfied by *messaging.Client
type FCMClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSink pushes the commission notice to the beneficiary's mobile device
type FCMSink struct {
	users  UserDirectory
	client FCMClient
}

func NewFCMSink(users UserDirectory, client FCMClient) *FCMSink {
	return &FCMSink{users: users, client: client}
}

func (s *FCMSink) Notify(ctx context.Context, userID, message string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("fcm lookup for %s: %w", userID, err)
	}
	if user.FCMToken == "" {
		return nil
	}

	msg := &messaging.Message{
		Token: user.FCMToken,
		Notification: &messaging.Notification{
			Title: commissionTitle,
			Body:  message,
		},
		Data: map[string]string{
			"type": models.NotificationTypeCommission,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound:     "default",
				ChannelID: "reseller_commissions",
			},
		},
	}

	if _, err := s.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send to %s: %w", userID, err)
	}
	return nil
}
