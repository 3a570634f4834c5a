package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/middleware"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
	"github.com/HSouheill/vpn_reseller_backend/utils"
)

const requestTimeout = 10 * time.Second

// ReferralDirectory resolves referral codes to resellers
type ReferralDirectory interface {
	ReferralOwner(ctx context.Context, code string) (string, error)
	EnsureReferralCode(ctx context.Context, userID string) (string, error)
}

// CommissionQuerier reads a beneficiary's ledger, most recent first
type CommissionQuerier interface {
	Query(ctx context.Context, beneficiaryID string) ([]models.CommissionLog, error)
}

type AffiliateController struct {
	validator   *affiliate.Validator
	stats       *affiliate.StatsService
	commissions CommissionQuerier
	referrals   ReferralDirectory
	referralURL string
}

func NewAffiliateController(validator *affiliate.Validator, stats *affiliate.StatsService, commissions CommissionQuerier, referrals ReferralDirectory) *AffiliateController {
	referralURL := os.Getenv("REFERRAL_BASE_URL")
	if referralURL == "" {
		referralURL = "https://panel.vpnreseller.app/register"
	}
	return &AffiliateController{
		validator:   validator,
		stats:       stats,
		commissions: commissions,
		referrals:   referrals,
		referralURL: referralURL,
	}
}

// RegisterParent links the authenticated reseller to a sponsor
func (ac *AffiliateController) RegisterParent(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	var req models.RegisterParentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Either parentId or referralCode is required",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	parentID := strings.TrimSpace(req.ParentID)
	if parentID == "" {
		parentID, err = ac.referrals.ReferralOwner(ctx, utils.NormalizeReferralCode(req.ReferralCode))
		if errors.Is(err, repositories.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Referral code not found",
			})
		}
		if err != nil {
			c.Logger().Errorf("Failed to resolve referral code: %v", err)
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to resolve referral code",
			})
		}
	}

	result, err := ac.validator.RegisterParent(ctx, userID, parentID)
	if errors.Is(err, affiliate.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid sponsor",
		})
	}
	if err != nil {
		c.Logger().Errorf("Failed to register sponsor for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to register sponsor",
		})
	}

	status := registrationStatus(result.Code)
	return c.JSON(status, models.Response{
		Status:  status,
		Message: result.Message,
		Data:    result,
	})
}

func registrationStatus(code affiliate.ValidationCode) int {
	switch code {
	case affiliate.CodeOK:
		return http.StatusCreated
	case affiliate.CodeDisabled:
		return http.StatusForbidden
	case affiliate.CodeSelfReference:
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

// GetNetworkStats returns the caller's downline summary
func (ac *AffiliateController) GetNetworkStats(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}
	return networkStatsResponse(c, ac.stats, userID)
}

// GetCommissions returns the caller's commission history
func (ac *AffiliateController) GetCommissions(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}
	return commissionsResponse(c, ac.commissions, userID)
}

// GetReferralCode returns the caller's referral code and link
func (ac *AffiliateController) GetReferralCode(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	code, err := ac.referrals.EnsureReferralCode(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err != nil {
		c.Logger().Errorf("Failed to get referral code for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to get referral code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Referral code retrieved successfully",
		Data: map[string]string{
			"referralCode": code,
			"referralLink": ac.referralLink(code),
		},
	})
}

// GetReferralQRCode returns the referral link as a base64 PNG QR code
func (ac *AffiliateController) GetReferralQRCode(c echo.Context) error {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Authentication failed",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	code, err := ac.referrals.EnsureReferralCode(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err != nil {
		c.Logger().Errorf("Failed to get referral code for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to get referral code",
		})
	}

	qrCode, err := GenerateReferralQRCode(ac.referralLink(code))
	if err != nil {
		c.Logger().Errorf("Failed to generate QR code: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "QR code generated successfully",
		Data: map[string]string{
			"referralCode": code,
			"qrCode":       qrCode,
		},
	})
}

func (ac *AffiliateController) referralLink(code string) string {
	return fmt.Sprintf("%s?code=%s", ac.referralURL, code)
}

// GenerateReferralQRCode renders content as a 300x300 PNG data URI
func GenerateReferralQRCode(content string) (string, error) {
	qrCode, err := qr.Encode(content, qr.M, qr.Auto)
	if err != nil {
		return "", err
	}
	qrCode, err = barcode.Scale(qrCode, 300, 300)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qrCode); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func networkStatsResponse(c echo.Context, stats *affiliate.StatsService, userID string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	result, err := stats.GetNetworkStats(ctx, userID)
	if errors.Is(err, affiliate.ErrInvalidInput) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID",
		})
	}
	if err != nil {
		c.Logger().Errorf("Failed to compute network stats for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to compute network stats",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Network stats retrieved successfully",
		Data:    result,
	})
}

func commissionsResponse(c echo.Context, commissions CommissionQuerier, userID string) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	entries, err := commissions.Query(ctx, userID)
	if err != nil {
		c.Logger().Errorf("Failed to load commissions for %s: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load commissions",
		})
	}

	summary := models.CommissionSummary{Entries: entries}
	if summary.Entries == nil {
		summary.Entries = []models.CommissionLog{}
	}
	for _, entry := range entries {
		switch entry.Currency {
		case models.CurrencyBalance:
			summary.TotalBalance += entry.Amount
		case models.CurrencyCredits:
			summary.TotalCredits += entry.Amount
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Commissions retrieved successfully",
		Data:    summary,
	})
}
