package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/vpn_reseller_backend/config"
	"github.com/HSouheill/vpn_reseller_backend/models"
)

var ErrConfigConflict = errors.New("affiliate config changed concurrently")

const (
	affiliateSettingsID = "affiliate"
	pricingSettingsID   = "pricing"
)

// SettingsRepository keeps the affiliate configuration and the credit unit
// price as singleton documents in the settings collection. Missing documents
// fall back to the seed values loaded at startup.
type SettingsRepository struct {
	collection   *mongo.Collection
	seed         models.AffiliateConfig
	defaultPrice float64
}

func NewSettingsRepository(db *mongo.Database, seed models.AffiliateConfig, defaultPrice float64) *SettingsRepository {
	return &SettingsRepository{
		collection:   db.Collection(config.SettingsCollection),
		seed:         seed,
		defaultPrice: defaultPrice,
	}
}

func (r *SettingsRepository) GetAffiliateConfig(ctx context.Context) (models.AffiliateConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc struct {
		Config models.AffiliateConfig `bson:"config"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": affiliateSettingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return r.seed, nil
	}
	if err != nil {
		return models.AffiliateConfig{}, fmt.Errorf("load affiliate config: %w", err)
	}
	return doc.Config, nil
}

// SaveAffiliateConfig validates and stores cfg, bumping its version.
func (r *SettingsRepository) SaveAffiliateConfig(ctx context.Context, cfg models.AffiliateConfig) (models.AffiliateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return models.AffiliateConfig{}, err
	}
	current, err := r.GetAffiliateConfig(ctx)
	if err != nil {
		return models.AffiliateConfig{}, err
	}
	cfg.Version = current.Version + 1
	cfg.UpdatedAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Optimistic on version so two admins saving at once cannot both win.
	filter := bson.M{"_id": affiliateSettingsID}
	if current.Version > 0 {
		filter["config.version"] = current.Version
	}
	res, err := r.collection.UpdateOne(ctx, filter,
		bson.M{"$set": bson.M{"config": cfg}},
		options.Update().SetUpsert(current.Version == 0))
	if mongo.IsDuplicateKeyError(err) {
		return models.AffiliateConfig{}, ErrConfigConflict
	}
	if err != nil {
		return models.AffiliateConfig{}, fmt.Errorf("save affiliate config: %w", err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return models.AffiliateConfig{}, ErrConfigConflict
	}
	return cfg, nil
}

func (r *SettingsRepository) CurrentCreditUnitPrice(ctx context.Context) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var doc struct {
		CreditUnitPrice float64 `bson:"creditUnitPrice"`
	}
	err := r.collection.FindOne(ctx, bson.M{"_id": pricingSettingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && doc.CreditUnitPrice <= 0) {
		return r.defaultPrice, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load credit unit price: %w", err)
	}
	return doc.CreditUnitPrice, nil
}
