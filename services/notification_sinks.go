// Package services holds the outbound integrations the affiliate engine
// notifies through: in-app inbox, websocket push, email and FCM.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/websocket"
)

const commissionTitle = "Commission earned"

// UserDirectory resolves contact details of a beneficiary
type UserDirectory interface {
	FindByID(ctx context.Context, userID string) (*models.User, error)
}

// NotificationStore persists in-app notifications
type NotificationStore interface {
	Save(ctx context.Context, notification models.Notification) error
}

// Pusher delivers a live notification to a connected user
type Pusher interface {
	NotifyCommissionEarned(userID, message string) error
}

// MultiSink fans one notification out to every sink. Every sink is
// attempted; their errors are joined.
type MultiSink []affiliate.NotificationSink

func (m MultiSink) Notify(ctx context.Context, userID, message string) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, userID, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// InAppSink stores the notification in the user's inbox and pushes it over
// the websocket hub when the user is online.
type InAppSink struct {
	store  NotificationStore
	pusher Pusher
	now    func() time.Time
}

func NewInAppSink(store NotificationStore, pusher Pusher) *InAppSink {
	return &InAppSink{store: store, pusher: pusher, now: func() time.Time { return time.Now().UTC() }}
}

func (s *InAppSink) Notify(ctx context.Context, userID, message string) error {
	if s.store != nil {
		err := s.store.Save(ctx, models.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Title:     commissionTitle,
			Message:   message,
			Type:      models.NotificationTypeCommission,
			CreatedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("store notification for %s: %w", userID, err)
		}
	}

	if s.pusher == nil {
		return nil
	}
	if err := s.pusher.NotifyCommissionEarned(userID, message); err != nil && !errors.Is(err, websocket.ErrUserNotConnected) {
		return fmt.Errorf("push notification to %s: %w", userID, err)
	}
	return nil
}

