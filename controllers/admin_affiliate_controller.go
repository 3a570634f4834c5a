package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/events"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
)

type AdminAffiliateController struct {
	configs     repositories.AffiliateConfigRepository
	stats       *affiliate.StatsService
	commissions CommissionQuerier
	bus         events.SalesEventBus
}

func NewAdminAffiliateController(configs repositories.AffiliateConfigRepository, stats *affiliate.StatsService, commissions CommissionQuerier, bus events.SalesEventBus) *AdminAffiliateController {
	return &AdminAffiliateController{
		configs:     configs,
		stats:       stats,
		commissions: commissions,
		bus:         bus,
	}
}

// GetConfig returns the current affiliate program configuration
func (ac *AdminAffiliateController) GetConfig(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	cfg, err := ac.configs.GetAffiliateConfig(ctx)
	if err != nil {
		c.Logger().Errorf("Failed to load affiliate config: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load affiliate config",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate config retrieved successfully",
		Data:    cfg,
	})
}

// UpdateConfig replaces the affiliate program configuration
func (ac *AdminAffiliateController) UpdateConfig(c echo.Context) error {
	var cfg models.AffiliateConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	cfg.CommissionType = models.CommissionType(strings.ToLower(string(cfg.CommissionType)))
	if err := cfg.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid affiliate config",
			Data:    err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	saved, err := ac.configs.SaveAffiliateConfig(ctx, cfg)
	if errors.Is(err, repositories.ErrConfigConflict) {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "Affiliate config was changed by another request, reload and retry",
		})
	}
	if err != nil {
		c.Logger().Errorf("Failed to save affiliate config: %v", err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to save affiliate config",
		})
	}

	c.Logger().Infof("Affiliate config updated to version %d by %v", saved.Version, c.Get("userId"))
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Affiliate config updated successfully",
		Data:    saved,
	})
}

// GetUserNetworkStats returns the downline summary of any reseller
func (ac *AdminAffiliateController) GetUserNetworkStats(c echo.Context) error {
	return networkStatsResponse(c, ac.stats, c.Param("userId"))
}

// GetUserCommissions returns the commission history of any reseller
func (ac *AdminAffiliateController) GetUserCommissions(c echo.Context) error {
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User ID is required",
		})
	}
	return commissionsResponse(c, ac.commissions, userID)
}

// PublishSale queues a completed sale for commission processing. It is the
// hook checkout calls and the tool to replay a sale by hand; replays are
// harmless because paid levels are never paid twice.
func (ac *AdminAffiliateController) PublishSale(c echo.Context) error {
	var sale models.SaleCompleted
	if err := c.Bind(&sale); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	sale.Status = strings.ToLower(strings.TrimSpace(sale.Status))
	if err := c.Validate(&sale); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid sale",
			Data:    err.Error(),
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := ac.bus.Publish(ctx, sale); err != nil {
		c.Logger().Errorf("Failed to publish sale %s: %v", sale.ID, err)
		return c.JSON(http.StatusServiceUnavailable, models.Response{
			Status:  http.StatusServiceUnavailable,
			Message: "Sales queue unavailable, retry later",
		})
	}

	return c.JSON(http.StatusAccepted, models.Response{
		Status:  http.StatusAccepted,
		Message: "Sale queued for commission processing",
		Data:    map[string]string{"saleId": sale.ID},
	})
}
