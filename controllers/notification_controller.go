package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
)

const defaultNotificationLimit = 50

// NotificationInbox lists stored in-app notifications
type NotificationInbox interface {
	ListForUser(ctx context.Context, userID string, limit int64) ([]models.Notification, error)
}

// FCMTokenStore records the device token push notifications are sent to
type FCMTokenStore interface {
	SetFCMToken(ctx context.Context, userID, token string) error
}

type NotificationController struct {
	inbox  NotificationInbox
	tokens FCMTokenStore
}

func NewNotificationController(inbox NotificationInbox, tokens FCMTokenStore) *NotificationController {
	return &NotificationController{inbox: inbox, tokens: tokens}
}

// FCMTokenUpdateRequest represents the request body for updating FCM tokens
type FCMTokenUpdateRequest struct {
	FCMToken string `json:"fcmToken" validate:"required"`
}

// ListNotifications returns the caller's latest in-app notifications
func (nc *NotificationController) ListNotifications(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	limit := int64(defaultNotificationLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	rows, err := nc.inbox.ListForUser(ctx, userID, limit)
	if err != nil {
		log.Printf("Error loading notifications for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load notifications",
		})
	}
	if rows == nil {
		rows = []models.Notification{}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Notifications retrieved successfully",
		Data:    rows,
	})
}

// UpdateUserFCMToken updates the FCM token for a user
func (nc *NotificationController) UpdateUserFCMToken(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req FCMTokenUpdateRequest
	if err := c.Bind(&req); err != nil || req.FCMToken == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	err = nc.tokens.SetFCMToken(ctx, userID, req.FCMToken)
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err != nil {
		log.Printf("Error updating user FCM token: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update FCM token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "FCM token updated",
	})
}
