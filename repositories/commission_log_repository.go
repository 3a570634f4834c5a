package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/vpn_reseller_backend/affiliate"
	"github.com/HSouheill/vpn_reseller_backend/config"
	"github.com/HSouheill/vpn_reseller_backend/models"
)

// CommissionLogRepository is the MongoDB commission ledger
type CommissionLogRepository struct {
	collection *mongo.Collection
}

func NewCommissionLogRepository(db *mongo.Database) *CommissionLogRepository {
	return &CommissionLogRepository{
		collection: db.Collection(config.CommissionLogCollection),
	}
}

func (r *CommissionLogRepository) Append(ctx context.Context, entry models.CommissionLog) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.collection.InsertOne(ctx, entry)
	if mongo.IsDuplicateKeyError(err) {
		return affiliate.ErrDuplicateEntry
	}
	if err != nil {
		return fmt.Errorf("insert commission log: %w", err)
	}
	return nil
}

func (r *CommissionLogRepository) Exists(ctx context.Context, key affiliate.LedgerKey) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, ledgerKeyFilter(key), options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check commission log: %w", err)
	}
	return n > 0, nil
}

func (r *CommissionLogRepository) Query(ctx context.Context, beneficiaryID string) ([]models.CommissionLog, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"beneficiaryId": beneficiaryID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find commission logs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.CommissionLog
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode commission logs: %w", err)
	}
	return rows, nil
}

func ledgerKeyFilter(key affiliate.LedgerKey) bson.M {
	return bson.M{
		"transactionId": key.TransactionID,
		"beneficiaryId": key.BeneficiaryID,
		"level":         key.Level,
		"currency":      key.Currency,
	}
}
