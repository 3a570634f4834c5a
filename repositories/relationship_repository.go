package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/config"
	"github.com/HSouheill/vpn_reseller_backend/models"
)

var ErrNotFound = errors.New("not found")

const queryTimeout = 10 * time.Second

// RelationshipRepository stores referral edges in MongoDB. The partial unique
// index on childId (status=active) turns Insert into a compare-and-insert.
type RelationshipRepository struct {
	collection *mongo.Collection
}

func NewRelationshipRepository(db *mongo.Database) *RelationshipRepository {
	return &RelationshipRepository{
		collection: db.Collection(config.RelationshipsCollection),
	}
}

func (r *RelationshipRepository) Insert(ctx context.Context, edge models.AffiliateRelationship) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, edge)
	if mongo.IsDuplicateKeyError(err) {
		return affiliate.ErrDuplicateRelationship
	}
	if err != nil {
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (r *RelationshipRepository) FindActiveByChild(ctx context.Context, childID string) ([]models.AffiliateRelationship, error) {
	return r.find(ctx, bson.M{"childId": childID, "status": models.RelationshipActive})
}

func (r *RelationshipRepository) FindActiveByParent(ctx context.Context, parentID string) ([]models.AffiliateRelationship, error) {
	return r.find(ctx, bson.M{"parentId": parentID, "status": models.RelationshipActive})
}

func (r *RelationshipRepository) AllActiveEdges(ctx context.Context) ([]models.AffiliateRelationship, error) {
	return r.find(ctx, bson.M{"status": models.RelationshipActive})
}

func (r *RelationshipRepository) find(ctx context.Context, filter bson.M) ([]models.AffiliateRelationship, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find relationships: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.AffiliateRelationship
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode relationships: %w", err)
	}
	return rows, nil
}
