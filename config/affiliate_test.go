package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

func writeSettings(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "affiliate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAffiliateSettingsDefaultsWhenFileMissing(t *testing.T) {
	got, err := LoadAffiliateSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAffiliateSettings(), got)
}

func TestLoadAffiliateSettingsFromFile(t *testing.T) {
	path := writeSettings(t, `
affiliate:
  enabled: true
  levels: 2
  commission_type: both
  level_percentage: [12.5, 4]
pricing:
  credit_unit_price: 2.5
runtime:
  payout_timeout_seconds: 3
  bus_workers: 8
  config_cache_ttl_seconds: 30
`)
	got, err := LoadAffiliateSettings(path)
	require.NoError(t, err)

	assert.True(t, got.Seed.Enabled)
	assert.Equal(t, 2, got.Seed.Levels)
	assert.Equal(t, models.CommissionTypeBoth, got.Seed.CommissionType)
	assert.Equal(t, []float64{12.5, 4}, got.Seed.LevelPercentage)
	assert.Equal(t, 2.5, got.CreditUnitPrice)
	assert.Equal(t, 3*time.Second, got.PayoutTimeout)
	assert.Equal(t, 10*time.Second, got.NotifyTimeout)
	assert.Equal(t, 8, got.BusWorkers)
	assert.Equal(t, 30*time.Second, got.ConfigCacheTTL)
}

func TestLoadAffiliateSettingsEnvOverridesFile(t *testing.T) {
	path := writeSettings(t, "affiliate:\n  enabled: true\n  levels: 2\n")
	t.Setenv("AFFILIATE_ENABLED", "false")
	t.Setenv("AFFILIATE_LEVELS", "4")
	t.Setenv("AFFILIATE_COMMISSION_TYPE", " Credits ")
	t.Setenv("AFFILIATE_LEVEL_PERCENTAGES", "10, 5,2.5,1")
	t.Setenv("CREDIT_UNIT_PRICE", "0.5")
	t.Setenv("SALES_BUS_WORKERS", "2")

	got, err := LoadAffiliateSettings(path)
	require.NoError(t, err)
	assert.False(t, got.Seed.Enabled)
	assert.Equal(t, 4, got.Seed.Levels)
	assert.Equal(t, models.CommissionTypeCredits, got.Seed.CommissionType)
	assert.Equal(t, []float64{10, 5, 2.5, 1}, got.Seed.LevelPercentage)
	assert.Equal(t, 0.5, got.CreditUnitPrice)
	assert.Equal(t, 2, got.BusWorkers)
}

func TestLoadAffiliateSettingsRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		file string
		env  map[string]string
	}{
		{name: "unknown commission type", env: map[string]string{"AFFILIATE_COMMISSION_TYPE": "points"}},
		{name: "percentage above 100", env: map[string]string{"AFFILIATE_LEVEL_PERCENTAGES": "10,150"}},
		{name: "unparsable percentage", env: map[string]string{"AFFILIATE_LEVEL_PERCENTAGES": "10,abc"}},
		{name: "negative levels", env: map[string]string{"AFFILIATE_LEVELS": "-1"}},
		{name: "zero credit price", env: map[string]string{"CREDIT_UNIT_PRICE": "0"}},
		{name: "malformed yaml", file: "affiliate: [unclosed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			path := ""
			if tc.file != "" {
				path = writeSettings(t, tc.file)
			}
			_, err := LoadAffiliateSettings(path)
			assert.Error(t, err)
		})
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_FLOAT", "")
	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.True(t, envBool("X_BOOL", true))
	assert.Equal(t, 1.5, envFloat("X_FLOAT", 1.5))
}
