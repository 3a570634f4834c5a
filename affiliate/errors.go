package affiliate

import (
	"errors"
	"fmt"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

var (
	// ErrDuplicateEntry is returned by a Ledger when the idempotency key already exists
	ErrDuplicateEntry = errors.New("commission log entry already exists")
	// ErrDuplicateRelationship is returned by a RelationshipStore when the child already has an active parent
	ErrDuplicateRelationship = errors.New("child already has an active parent")
	ErrInvalidInput          = errors.New("invalid input")
)

// ValidationCode names the reason a sponsor registration was rejected
type ValidationCode string

const (
	CodeOK               ValidationCode = ""
	CodeDisabled         ValidationCode = "Disabled"
	CodeSelfReference    ValidationCode = "SelfReference"
	CodeAlreadyHasParent ValidationCode = "AlreadyHasParent"
	CodeCycleDetected    ValidationCode = "CycleDetected"
)

var validationMessages = map[ValidationCode]string{
	CodeOK:               "Sponsor registered successfully",
	CodeDisabled:         "The affiliate program is currently disabled",
	CodeSelfReference:    "You cannot be your own sponsor",
	CodeAlreadyHasParent: "This reseller already has a sponsor",
	CodeCycleDetected:    "This sponsor is already part of your network",
}

// RegisterResult is the outcome of RegisterParent
type RegisterResult struct {
	Success      bool                          `json:"success"`
	Code         ValidationCode                `json:"code,omitempty"`
	Message      string                        `json:"message"`
	Relationship *models.AffiliateRelationship `json:"relationship,omitempty"`
}

func rejected(code ValidationCode) RegisterResult {
	return RegisterResult{Code: code, Message: validationMessages[code]}
}

// PayoutFailure is recorded when a single payout step could not complete
type PayoutFailure struct {
	Stage         string
	BeneficiaryID string
	Level         int
	Currency      models.Currency
	Err           error
}

func (e *PayoutFailure) Error() string {
	return fmt.Sprintf("payout %s failed for %s at level %d (%s): %v", e.Stage, e.BeneficiaryID, e.Level, e.Currency, e.Err)
}

func (e *PayoutFailure) Unwrap() error { return e.Err }

// DataIntegrityViolation is raised when the referral graph breaks its own invariants
type DataIntegrityViolation struct {
	NodeID string
	Reason string
}

func (e *DataIntegrityViolation) Error() string {
	return fmt.Sprintf("referral graph integrity violation at %s: %s", e.NodeID, e.Reason)
}
