package affiliate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/HSouheill/vpn_reseller_backend/models"
)

// Validator registers sponsor relationships while keeping the active graph a
// forest: every child has at most one active parent and no edge closes a loop.
type Validator struct {
	relationships RelationshipStore
	config        ConfigStore
	locker        Locker
	metrics       *Metrics
	now           func() time.Time
	newID         func() string
}

func NewValidator(deps Dependencies) *Validator {
	deps = deps.withDefaults()
	return &Validator{
		relationships: deps.Relationships,
		config:        deps.Config,
		locker:        deps.Locker,
		metrics:       deps.Metrics,
		now:           deps.Now,
		newID:         deps.NewID,
	}
}

// RegisterParent links childID under parentID. Rule violations are reported in
// the result; the returned error is reserved for store or lock failures. No
// edge is written unless every check passes.
func (v *Validator) RegisterParent(ctx context.Context, childID, parentID string) (RegisterResult, error) {
	cfg, err := v.config.GetAffiliateConfig(ctx)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load affiliate config: %w", err)
	}
	if !cfg.Enabled {
		return v.reject(CodeDisabled), nil
	}

	childID = strings.TrimSpace(childID)
	parentID = strings.TrimSpace(parentID)
	if childID == "" || parentID == "" {
		return RegisterResult{}, ErrInvalidInput
	}
	if childID == parentID {
		return v.reject(CodeSelfReference), nil
	}

	unlock, err := v.locker.Lock(ctx, "affiliate:register:"+childID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("lock child %s: %w", childID, err)
	}
	defer unlock()

	existing, err := v.relationships.FindActiveByChild(ctx, childID)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("find sponsor of %s: %w", childID, err)
	}
	if len(existing) > 0 {
		return v.reject(CodeAlreadyHasParent), nil
	}

	edges, err := v.relationships.AllActiveEdges(ctx)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("load referral graph: %w", err)
	}
	if _, reachable := indexByParent(edges).descendants(childID)[parentID]; reachable {
		return v.reject(CodeCycleDetected), nil
	}

	edge := models.AffiliateRelationship{
		ID:        v.newID(),
		ParentID:  parentID,
		ChildID:   childID,
		CreatedAt: v.now(),
		Status:    models.RelationshipActive,
	}
	if err := v.relationships.Insert(ctx, edge); err != nil {
		if errors.Is(err, ErrDuplicateRelationship) {
			return v.reject(CodeAlreadyHasParent), nil
		}
		return RegisterResult{}, fmt.Errorf("insert relationship: %w", err)
	}

	log.Printf("Affiliate: %s registered under sponsor %s", childID, parentID)
	v.metrics.incRegistration(CodeOK)
	return RegisterResult{Success: true, Message: validationMessages[CodeOK], Relationship: &edge}, nil
}

func (v *Validator) reject(code ValidationCode) RegisterResult {
	v.metrics.incRegistration(code)
	return rejected(code)
}
