// Package affiliate implements the multi-level referral commission engine:
// sponsor registration with hierarchy validation, downline statistics and
// the per-sale commission waterfall.
package affiliate

import (
	"context"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// RelationshipStore holds the parent -> child referral edges
type RelationshipStore interface {
	Insert(ctx context.Context, edge models.AffiliateRelationship) error
	FindActiveByChild(ctx context.Context, childID string) ([]models.AffiliateRelationship, error)
	FindActiveByParent(ctx context.Context, parentID string) ([]models.AffiliateRelationship, error)
	AllActiveEdges(ctx context.Context) ([]models.AffiliateRelationship, error)
}

// ConfigStore returns the current affiliate program configuration
type ConfigStore interface {
	GetAffiliateConfig(ctx context.Context) (models.AffiliateConfig, error)
}

// PayoutMutator credits a beneficiary's wallet
type PayoutMutator interface {
	AddCredits(ctx context.Context, userID string, amount int64) error
	AddBalance(ctx context.Context, userID string, amount float64) error
}

// PricingOracle converts currency into credit units
type PricingOracle interface {
	CurrentCreditUnitPrice(ctx context.Context) (float64, error)
}

// NotificationSink delivers a message to a user. Delivery is best-effort.
type NotificationSink interface {
	Notify(ctx context.Context, userID, message string) error
}

// LedgerKey identifies a single payout step
type LedgerKey struct {
	TransactionID string
	BeneficiaryID string
	Level         int
	Currency      models.Currency
}

// Ledger is the append-only commission log
type Ledger interface {
	Append(ctx context.Context, entry models.CommissionLog) error
	Exists(ctx context.Context, key LedgerKey) (bool, error)
	// Query returns a beneficiary's entries, most recent first.
	Query(ctx context.Context, beneficiaryID string) ([]models.CommissionLog, error)
}

// KeyOf returns the idempotency key of a ledger entry
func KeyOf(entry models.CommissionLog) LedgerKey {
	return LedgerKey{
		TransactionID: entry.TransactionID,
		BeneficiaryID: entry.BeneficiaryID,
		Level:         entry.Level,
		Currency:      entry.Currency,
	}
}
