package affiliate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
)

func TestProcessPaysBalanceUpTheChain(t *testing.T) {
	// A sponsors B, B sponsors C; C sells for 100.
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	engine.Wait()

	require.NoError(t, report.Halted)
	require.Len(t, report.Paid(), 2)
	assert.InDelta(t, 10.0, h.wallet.Balance("B"), 1e-9)
	assert.InDelta(t, 5.0, h.wallet.Balance("A"), 1e-9)
	assert.Zero(t, h.wallet.Balance("C"))

	entries := h.ledger.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "B", entries[0].BeneficiaryID)
	assert.Equal(t, 1, entries[0].Level)
	assert.Equal(t, "A", entries[1].BeneficiaryID)
	assert.Equal(t, 2, entries[1].Level)
	for _, entry := range entries {
		assert.Equal(t, "sale-1", entry.TransactionID)
		assert.Equal(t, "C", entry.SourceUserID)
		assert.Equal(t, models.CurrencyBalance, entry.Currency)
		assert.Equal(t, fixedNow, entry.CreatedAt)
	}

	assert.Equal(t, []string{"A", "B"}, h.sink.Recipients())
}

func TestProcessIsIdempotentPerSale(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	engine := affiliate.NewEngine(h.deps)

	first := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	second := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	engine.Wait()

	assert.Len(t, first.Paid(), 2)
	assert.Empty(t, second.Paid())
	for _, lvl := range second.Levels {
		assert.Equal(t, affiliate.OutcomeDuplicate, lvl.Outcome)
	}
	assert.Len(t, h.ledger.All(), 2)
	assert.InDelta(t, 10.0, h.wallet.Balance("B"), 1e-9)
	assert.InDelta(t, 5.0, h.wallet.Balance("A"), 1e-9)
	assert.Len(t, h.sink.Messages("B"), 1)
}

func TestProcessConcurrentRedeliveryPaysOnce(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	engine := affiliate.NewEngine(h.deps)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
		}()
	}
	wg.Wait()
	engine.Wait()

	assert.Len(t, h.ledger.All(), 2)
	assert.InDelta(t, 10.0, h.wallet.Balance("B"), 1e-9)
}

func TestProcessStopsAtConfiguredLevels(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5, 2), chain("A", "B", "C", "D")...)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "D", 100))
	engine.Wait()

	require.Len(t, report.Paid(), 2)
	assert.Zero(t, h.wallet.Balance("A"), "level 3 is beyond the configured depth")
	assert.InDelta(t, 10.0, h.wallet.Balance("C"), 1e-9)
	assert.InDelta(t, 5.0, h.wallet.Balance("B"), 1e-9)
}

func TestProcessSkipsLevelsWithoutPercentage(t *testing.T) {
	// Levels exceeds the percentage list; level 3 pays nothing but the walk goes on.
	h := newHarness(balanceConfig(4, 10, 5, 0, 1), chain("A", "B", "C", "D", "E")...)
	engine := affiliate.NewEngine(h.deps)

	engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "E", 100))
	engine.Wait()

	assert.InDelta(t, 10.0, h.wallet.Balance("D"), 1e-9)
	assert.InDelta(t, 5.0, h.wallet.Balance("C"), 1e-9)
	assert.Zero(t, h.wallet.Balance("B"))
	assert.InDelta(t, 1.0, h.wallet.Balance("A"), 1e-9)
	assert.Len(t, h.ledger.All(), 3)
}

func TestProcessIgnoresIneligibleSales(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.AffiliateConfig
		sale models.SaleCompleted
	}{
		{"pending sale", balanceConfig(2, 10, 5), models.SaleCompleted{ID: "s", ResellerID: "C", Amount: 100, Status: "pending"}},
		{"zero amount", balanceConfig(2, 10, 5), sale("s", "C", 0)},
		{"negative amount", balanceConfig(2, 10, 5), sale("s", "C", -10)},
		{"program disabled", models.AffiliateConfig{Enabled: false, Levels: 2, CommissionType: models.CommissionTypeBalance, LevelPercentage: []float64{10, 5}}, sale("s", "C", 100)},
		{"no sponsor", balanceConfig(2, 10, 5), sale("s", "A", 100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.cfg, chain("A", "B", "C")...)
			engine := affiliate.NewEngine(h.deps)

			report := engine.ProcessCommissionsForSale(context.Background(), tt.sale)
			engine.Wait()

			assert.NoError(t, report.Halted)
			assert.Empty(t, report.Levels)
			assert.Empty(t, h.ledger.All())
			assert.Empty(t, h.sink.Recipients())
		})
	}
}

func TestProcessAcceptsCompletedStatusInAnyCase(t *testing.T) {
	for _, status := range []string{"Completed", "COMPLETED", " completed "} {
		t.Run(status, func(t *testing.T) {
			h := newHarness(balanceConfig(1, 10), chain("A", "B")...)
			engine := affiliate.NewEngine(h.deps)

			s := sale("s1", " B ", 100)
			s.Status = status
			report := engine.ProcessCommissionsForSale(context.Background(), s)
			engine.Wait()

			require.Len(t, report.Paid(), 1)
			assert.InDelta(t, 10.0, h.wallet.Balance("A"), 1e-9)
			require.Len(t, h.ledger.All(), 1)
			assert.Equal(t, "B", h.ledger.All()[0].SourceUserID)
		})
	}
}

func TestProcessCreditsFloorsToWholeUnits(t *testing.T) {
	cfg := balanceConfig(1, 10)
	cfg.CommissionType = models.CommissionTypeCredits
	h := newHarness(cfg, chain("A", "B")...)
	h.deps.Pricing = repositories.FixedPrice(2.5)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()

	require.Len(t, report.Paid(), 1)
	assert.Equal(t, int64(4), h.wallet.Credits("A"))
	assert.Zero(t, h.wallet.Balance("A"))
	entries := h.ledger.All()
	require.Len(t, entries, 1)
	assert.Equal(t, models.CurrencyCredits, entries[0].Currency)
	assert.Equal(t, 4.0, entries[0].Amount)
}

func TestProcessCreditsBelowOneUnitLeavesNoTrace(t *testing.T) {
	cfg := balanceConfig(1, 10)
	cfg.CommissionType = models.CommissionTypeCredits
	h := newHarness(cfg, chain("A", "B")...)
	h.deps.Pricing = repositories.FixedPrice(5)
	engine := affiliate.NewEngine(h.deps)

	// 10% of 30 is 3, which does not buy a single credit at 5.
	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 30))
	engine.Wait()

	require.Len(t, report.Levels, 1)
	assert.Equal(t, affiliate.OutcomeBelowUnit, report.Levels[0].Outcome)
	assert.Zero(t, h.wallet.Credits("A"))
	assert.Empty(t, h.ledger.All())
	assert.Empty(t, h.sink.Recipients())
}

func TestProcessBothPaysTwoIndependentEntries(t *testing.T) {
	cfg := balanceConfig(1, 10)
	cfg.CommissionType = models.CommissionTypeBoth
	h := newHarness(cfg, chain("A", "B")...)
	h.deps.Pricing = repositories.FixedPrice(2)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()

	require.Len(t, report.Paid(), 2)
	assert.Equal(t, int64(5), h.wallet.Credits("A"))
	assert.InDelta(t, 10.0, h.wallet.Balance("A"), 1e-9)

	entries := h.ledger.All()
	require.Len(t, entries, 2)
	assert.NotEqual(t, affiliate.KeyOf(entries[0]), affiliate.KeyOf(entries[1]))

	// A replay skips both halves.
	again := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()
	assert.Empty(t, again.Paid())
	assert.Len(t, h.ledger.All(), 2)
}

func TestProcessPayoutFailureDoesNotBlockOtherLevels(t *testing.T) {
	h := newHarness(balanceConfig(3, 10, 5, 2), chain("A", "B", "C", "D")...)
	wallet := &flakyWallet{MemoryWallet: h.wallet, failFor: "C"}
	h.deps.Payouts = wallet
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "D", 100))
	engine.Wait()

	require.NoError(t, report.Halted)
	require.Len(t, report.Levels, 3)
	assert.Equal(t, affiliate.OutcomePayoutFailed, report.Levels[0].Outcome)
	var failure *affiliate.PayoutFailure
	require.ErrorAs(t, report.Levels[0].Err, &failure)
	assert.Equal(t, "C", failure.BeneficiaryID)
	assert.Equal(t, "mutate", failure.Stage)

	assert.InDelta(t, 5.0, h.wallet.Balance("B"), 1e-9)
	assert.InDelta(t, 2.0, h.wallet.Balance("A"), 1e-9)
	for _, entry := range h.ledger.All() {
		assert.NotEqual(t, "C", entry.BeneficiaryID, "failed payouts are not logged")
	}

	// Once the wallet recovers a replay pays only the missing level.
	wallet.failFor = ""
	retry := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "D", 100))
	engine.Wait()
	require.Len(t, retry.Paid(), 1)
	assert.Equal(t, "C", retry.Paid()[0].BeneficiaryID)
	assert.InDelta(t, 5.0, h.wallet.Balance("B"), 1e-9)
}

func TestProcessPayoutTimeout(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	h.deps.Payouts = &stuckWallet{MemoryWallet: h.wallet, stuckFor: "B"}
	h.deps.PayoutTimeout = 20 * time.Millisecond
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	engine.Wait()

	require.Len(t, report.Levels, 2)
	assert.Equal(t, affiliate.OutcomePayoutFailed, report.Levels[0].Outcome)
	assert.ErrorIs(t, report.Levels[0].Err, context.DeadlineExceeded)
	assert.Equal(t, affiliate.OutcomePaid, report.Levels[1].Outcome)
	assert.InDelta(t, 5.0, h.wallet.Balance("A"), 1e-9)
}

func TestProcessLatePayoutIsLoggedAndNotRepaid(t *testing.T) {
	h := newHarness(balanceConfig(1, 10), chain("A", "B")...)
	h.deps.Payouts = &slowWallet{MemoryWallet: h.wallet, delay: 50 * time.Millisecond}
	h.deps.PayoutTimeout = 10 * time.Millisecond
	engine := affiliate.NewEngine(h.deps)

	first := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()
	require.Len(t, first.Levels, 1)
	assert.Equal(t, affiliate.OutcomePaid, first.Levels[0].Outcome)
	assert.Len(t, h.ledger.All(), 1)

	again := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()
	require.Len(t, again.Levels, 1)
	assert.Equal(t, affiliate.OutcomeDuplicate, again.Levels[0].Outcome)
	assert.InDelta(t, 10.0, h.wallet.Balance("A"), 1e-9)
}

func TestProcessHaltsOnMultipleActiveSponsors(t *testing.T) {
	edges := append(chain("A", "B", "C"), edge("X", "B"))
	h := newHarness(balanceConfig(3, 10, 5, 2), edges...)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	engine.Wait()

	var violation *affiliate.DataIntegrityViolation
	require.ErrorAs(t, report.Halted, &violation)
	assert.Equal(t, "B", violation.NodeID)
	assert.False(t, report.Retryable)
	// Level 1 was decided before the walk reached the broken node.
	require.Len(t, report.Paid(), 1)
	assert.InDelta(t, 10.0, h.wallet.Balance("B"), 1e-9)
	assert.Zero(t, h.wallet.Balance("A"))
	assert.Zero(t, h.wallet.Balance("X"))
}

func TestProcessHaltsOnSponsorLoop(t *testing.T) {
	edges := []models.AffiliateRelationship{edge("B", "C"), edge("C", "B")}
	h := newHarness(balanceConfig(5, 10, 5, 2, 1, 1), edges...)
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "C", 100))
	engine.Wait()

	var violation *affiliate.DataIntegrityViolation
	require.ErrorAs(t, report.Halted, &violation)
	assert.Len(t, report.Paid(), 1)
	assert.InDelta(t, 10.0, h.wallet.Balance("B"), 1e-9)
}

func TestHandleSaleReportsStoreOutages(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	h.deps.Config = failingConfig{err: errors.New("settings unavailable")}
	engine := affiliate.NewEngine(h.deps)

	err := engine.HandleSale(context.Background(), sale("sale-1", "C", 100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "settings unavailable")
}

func TestHandleSaleAbsorbsPayoutFailures(t *testing.T) {
	h := newHarness(balanceConfig(2, 10, 5), chain("A", "B", "C")...)
	h.deps.Payouts = &flakyWallet{MemoryWallet: h.wallet, failFor: "B"}
	engine := affiliate.NewEngine(h.deps)

	assert.NoError(t, engine.HandleSale(context.Background(), sale("sale-1", "C", 100)))
	engine.Wait()
}

func TestNotificationFailureDoesNotAffectPayout(t *testing.T) {
	h := newHarness(balanceConfig(1, 10), chain("A", "B")...)
	h.deps.Notifier = panickingSink{}
	engine := affiliate.NewEngine(h.deps)

	report := engine.ProcessCommissionsForSale(context.Background(), sale("sale-1", "B", 100))
	engine.Wait()

	assert.Len(t, report.Paid(), 1)
	assert.Len(t, h.ledger.All(), 1)
}

type flakyWallet struct {
	*repositories.MemoryWallet
	failFor string
}

func (w *flakyWallet) AddBalance(ctx context.Context, userID string, amount float64) error {
	if userID == w.failFor {
		return errors.New("wallet unavailable")
	}
	return w.MemoryWallet.AddBalance(ctx, userID, amount)
}

type stuckWallet struct {
	*repositories.MemoryWallet
	stuckFor string
}

func (w *stuckWallet) AddBalance(ctx context.Context, userID string, amount float64) error {
	if userID == w.stuckFor {
		<-ctx.Done()
		return ctx.Err()
	}
	return w.MemoryWallet.AddBalance(ctx, userID, amount)
}

type panickingSink struct{}

func (panickingSink) Notify(context.Context, string, string) error {
	panic("smtp exploded")
}

// slowWallet ignores the deadline and applies the credit late
type slowWallet struct {
	*repositories.MemoryWallet
	delay time.Duration
}

func (w *slowWallet) AddBalance(ctx context.Context, userID string, amount float64) error {
	time.Sleep(w.delay)
	return w.MemoryWallet.AddBalance(ctx, userID, amount)
}
