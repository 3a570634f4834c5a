package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/vpn_reseller_backend/config"
)

// WalletRepository credits commission payouts onto the user document
type WalletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(db *mongo.Database) *WalletRepository {
	return &WalletRepository{
		collection: db.Collection(config.UsersCollection),
	}
}

func (r *WalletRepository) AddCredits(ctx context.Context, userID string, amount int64) error {
	return r.increment(ctx, userID, "credits", amount)
}

func (r *WalletRepository) AddBalance(ctx context.Context, userID string, amount float64) error {
	return r.increment(ctx, userID, "balance", amount)
}

func (r *WalletRepository) increment(ctx context.Context, userID, field string, amount interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{
		"$inc": bson.M{field: amount},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	res, err := r.collection.UpdateOne(ctx, userFilter(userID), update)
	if err != nil {
		return fmt.Errorf("add %s to %s: %w", field, userID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("add %s to %s: %w", field, userID, ErrNotFound)
	}
	return nil
}
