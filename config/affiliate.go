package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// AffiliateSettings are the process settings of the affiliate program. Seed
// is only written to storage when no configuration has been saved yet.
type AffiliateSettings struct {
	Seed            models.AffiliateConfig
	CreditUnitPrice float64
	PayoutTimeout   time.Duration
	NotifyTimeout   time.Duration
	BusWorkers      int
	BusQueueSize    int
	ConfigCacheTTL  time.Duration
}

type affiliateFile struct {
	Affiliate struct {
		Enabled         *bool     `yaml:"enabled"`
		Levels          *int      `yaml:"levels"`
		CommissionType  string    `yaml:"commission_type"`
		LevelPercentage []float64 `yaml:"level_percentage"`
	} `yaml:"affiliate"`
	Pricing struct {
		CreditUnitPrice float64 `yaml:"credit_unit_price"`
	} `yaml:"pricing"`
	Runtime struct {
		PayoutTimeoutSeconds  int `yaml:"payout_timeout_seconds"`
		NotifyTimeoutSeconds  int `yaml:"notify_timeout_seconds"`
		BusWorkers            int `yaml:"bus_workers"`
		BusQueueSize          int `yaml:"bus_queue_size"`
		ConfigCacheTTLSeconds int `yaml:"config_cache_ttl_seconds"`
	} `yaml:"runtime"`
}

// DefaultAffiliateSettings is a disabled program paying 10/5/2 percent in balance
func DefaultAffiliateSettings() AffiliateSettings {
	return AffiliateSettings{
		Seed: models.AffiliateConfig{
			Enabled:         false,
			Levels:          3,
			CommissionType:  models.CommissionTypeBalance,
			LevelPercentage: []float64{10, 5, 2},
		},
		CreditUnitPrice: 1,
		PayoutTimeout:   5 * time.Second,
		NotifyTimeout:   10 * time.Second,
		BusWorkers:      4,
		BusQueueSize:    256,
		ConfigCacheTTL:  60 * time.Second,
	}
}

// LoadAffiliateSettings layers defaults, the optional YAML file at path and
// environment overrides. A missing file is not an error.
func LoadAffiliateSettings(path string) (AffiliateSettings, error) {
	cfg := DefaultAffiliateSettings()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return AffiliateSettings{}, fmt.Errorf("read affiliate settings: %w", err)
		}
		if err == nil {
			var f affiliateFile
			if err := yaml.Unmarshal(raw, &f); err != nil {
				return AffiliateSettings{}, fmt.Errorf("parse affiliate settings: %w", err)
			}
			applyAffiliateFile(&cfg, f)
		}
	}

	cfg.Seed.Enabled = envBool("AFFILIATE_ENABLED", cfg.Seed.Enabled)
	cfg.Seed.Levels = envInt("AFFILIATE_LEVELS", cfg.Seed.Levels)
	if v := os.Getenv("AFFILIATE_COMMISSION_TYPE"); v != "" {
		cfg.Seed.CommissionType = models.CommissionType(strings.ToLower(strings.TrimSpace(v)))
	}
	if v := os.Getenv("AFFILIATE_LEVEL_PERCENTAGES"); v != "" {
		pcts, err := parsePercentages(v)
		if err != nil {
			return AffiliateSettings{}, fmt.Errorf("AFFILIATE_LEVEL_PERCENTAGES: %w", err)
		}
		cfg.Seed.LevelPercentage = pcts
	}
	cfg.CreditUnitPrice = envFloat("CREDIT_UNIT_PRICE", cfg.CreditUnitPrice)
	cfg.PayoutTimeout = time.Duration(envInt("PAYOUT_TIMEOUT_SECONDS", int(cfg.PayoutTimeout.Seconds()))) * time.Second
	cfg.BusWorkers = envInt("SALES_BUS_WORKERS", cfg.BusWorkers)

	if err := cfg.Seed.Validate(); err != nil {
		return AffiliateSettings{}, fmt.Errorf("invalid affiliate seed config: %w", err)
	}
	if cfg.CreditUnitPrice <= 0 {
		return AffiliateSettings{}, fmt.Errorf("credit unit price must be positive, got %v", cfg.CreditUnitPrice)
	}
	return cfg, nil
}

func applyAffiliateFile(cfg *AffiliateSettings, f affiliateFile) {
	if f.Affiliate.Enabled != nil {
		cfg.Seed.Enabled = *f.Affiliate.Enabled
	}
	if f.Affiliate.Levels != nil {
		cfg.Seed.Levels = *f.Affiliate.Levels
	}
	if f.Affiliate.CommissionType != "" {
		cfg.Seed.CommissionType = models.CommissionType(f.Affiliate.CommissionType)
	}
	if f.Affiliate.LevelPercentage != nil {
		cfg.Seed.LevelPercentage = f.Affiliate.LevelPercentage
	}
	if f.Pricing.CreditUnitPrice > 0 {
		cfg.CreditUnitPrice = f.Pricing.CreditUnitPrice
	}
	if f.Runtime.PayoutTimeoutSeconds > 0 {
		cfg.PayoutTimeout = time.Duration(f.Runtime.PayoutTimeoutSeconds) * time.Second
	}
	if f.Runtime.NotifyTimeoutSeconds > 0 {
		cfg.NotifyTimeout = time.Duration(f.Runtime.NotifyTimeoutSeconds) * time.Second
	}
	if f.Runtime.BusWorkers > 0 {
		cfg.BusWorkers = f.Runtime.BusWorkers
	}
	if f.Runtime.BusQueueSize > 0 {
		cfg.BusQueueSize = f.Runtime.BusQueueSize
	}
	if f.Runtime.ConfigCacheTTLSeconds > 0 {
		cfg.ConfigCacheTTL = time.Duration(f.Runtime.ConfigCacheTTLSeconds) * time.Second
	}
}

// parsePercentages reads "10,5,2.5"
func parsePercentages(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func envInt(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v
		}
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if raw := os.Getenv(name); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}
