package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// CommissionType controls which currency a commission is paid in
type CommissionType string

const (
	CommissionTypeCredits CommissionType = "credits"
	CommissionTypeBalance CommissionType = "balance"
	CommissionTypeBoth    CommissionType = "both"
)

// Currency is the unit a single ledger entry was paid in
type Currency string

const (
	CurrencyCredits Currency = "credits"
	CurrencyBalance Currency = "balance"
)

// RelationshipStatus is the lifecycle state of a referral edge
type RelationshipStatus string

const (
	RelationshipActive   RelationshipStatus = "active"
	RelationshipInactive RelationshipStatus = "inactive" // reserved for unlinking, never produced
)

// SaleStatusCompleted is the only sale status that triggers commissions
const SaleStatusCompleted = "completed"

// AffiliateConfig is the process-wide affiliate program configuration
type AffiliateConfig struct {
	Enabled         bool           `json:"enabled" bson:"enabled"`
	Levels          int            `json:"levels" bson:"levels" validate:"gte=0,lte=20"`
	CommissionType  CommissionType `json:"commissionType" bson:"commissionType" validate:"required,oneof=credits balance both"`
	LevelPercentage []float64      `json:"levelPercentage" bson:"levelPercentage" validate:"dive,gte=0,lte=100"`
	Version         int64          `json:"version" bson:"version"`
	UpdatedAt       time.Time      `json:"updatedAt" bson:"updatedAt"`
}

var configValidator = validator.New()

// Validate checks the configuration bounds
func (c AffiliateConfig) Validate() error {
	return configValidator.Struct(c)
}

// PercentageForLevel returns the configured percentage for a 1-based level, 0 when unset
func (c AffiliateConfig) PercentageForLevel(level int) float64 {
	if level < 1 || level > len(c.LevelPercentage) {
		return 0
	}
	return c.LevelPercentage[level-1]
}

// AffiliateRelationship is a parent -> child referral edge between resellers
type AffiliateRelationship struct {
	ID        string             `json:"id" bson:"_id"`
	ParentID  string             `json:"parentId" bson:"parentId"`
	ChildID   string             `json:"childId" bson:"childId"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	Status    RelationshipStatus `json:"status" bson:"status"`
}

// CommissionLog is one immutable ledger entry for a paid commission
type CommissionLog struct {
	ID            string    `json:"id" bson:"_id"`
	TransactionID string    `json:"transactionId" bson:"transactionId"`
	BeneficiaryID string    `json:"beneficiaryId" bson:"beneficiaryId"`
	SourceUserID  string    `json:"sourceUserId" bson:"sourceUserId"`
	Level         int       `json:"level" bson:"level"`
	Amount        float64   `json:"amount" bson:"amount"`
	Currency      Currency  `json:"currency" bson:"currency"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
}

// SaleCompleted is emitted by checkout once a sale is finalized
type SaleCompleted struct {
	ID         string  `json:"id" validate:"required"`
	ResellerID string  `json:"resellerId" validate:"required"`
	Amount     float64 `json:"amount" validate:"gt=0"`
	Status     string  `json:"status" validate:"required,eq=completed"`
}

// NetworkStats summarizes a reseller's downline
type NetworkStats struct {
	Direct int `json:"direct"`
	Total  int `json:"total"`
	Depth  int `json:"depth"`
}

// RegisterParentRequest links the caller to a sponsor by id or referral code
type RegisterParentRequest struct {
	ParentID     string `json:"parentId,omitempty" validate:"required_without=ReferralCode"`
	ReferralCode string `json:"referralCode,omitempty" validate:"required_without=ParentID"`
}

// CommissionSummary is the reseller-facing ledger view
type CommissionSummary struct {
	Entries      []CommissionLog `json:"entries"`
	TotalBalance float64         `json:"totalBalance"`
	TotalCredits float64         `json:"totalCredits"`
}
