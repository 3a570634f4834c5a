package affiliate_test

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/repositories"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func balanceConfig(levels int, pcts ...float64) models.AffiliateConfig {
	return models.AffiliateConfig{
		Enabled:         true,
		Levels:          levels,
		CommissionType:  models.CommissionTypeBalance,
		LevelPercentage: pcts,
	}
}

func edge(parent, child string) models.AffiliateRelationship {
	return models.AffiliateRelationship{
		ID:        parent + "->" + child,
		ParentID:  parent,
		ChildID:   child,
		CreatedAt: fixedNow,
		Status:    models.RelationshipActive,
	}
}

// chain returns edges ids[0] -> ids[1] -> ... -> ids[n-1]
func chain(ids ...string) []models.AffiliateRelationship {
	var out []models.AffiliateRelationship
	for i := 0; i+1 < len(ids); i++ {
		out = append(out, edge(ids[i], ids[i+1]))
	}
	return out
}

type harness struct {
	relationships *repositories.MemoryRelationshipStore
	config        *repositories.MemoryConfigStore
	ledger        *repositories.MemoryLedger
	wallet        *repositories.MemoryWallet
	sink          *repositories.MemoryNotificationSink
	deps          affiliate.Dependencies
}

func newHarness(cfg models.AffiliateConfig, edges ...models.AffiliateRelationship) *harness {
	h := &harness{
		relationships: repositories.NewMemoryRelationshipStore(edges...),
		config:        repositories.NewMemoryConfigStore(cfg),
		ledger:        repositories.NewMemoryLedger(),
		wallet:        repositories.NewMemoryWallet(),
		sink:          repositories.NewMemoryNotificationSink(),
	}
	var seq int64
	h.deps = affiliate.Dependencies{
		Relationships: h.relationships,
		Config:        h.config,
		Ledger:        h.ledger,
		Payouts:       h.wallet,
		Pricing:       repositories.FixedPrice(1),
		Notifier:      h.sink,
		Now:           func() time.Time { return fixedNow },
		NewID:         func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) },
	}
	return h
}

func sale(id, reseller string, amount float64) models.SaleCompleted {
	return models.SaleCompleted{ID: id, ResellerID: reseller, Amount: amount, Status: models.SaleStatusCompleted}
}
