package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/vpn_reseller_backend/config"
	"github.com/HSouheill/vpn_reseller_backend/models"
	"github.com/HSouheill/vpn_reseller_backend/utils"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(config.UsersCollection),
	}
}

// userFilter matches users stored with ObjectID keys as well as legacy string keys
func userFilter(userID string) bson.M {
	if objID, err := primitive.ObjectIDFromHex(userID); err == nil {
		return bson.M{"_id": objID}
	}
	return bson.M{"_id": userID}
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return r.findOne(ctx, userFilter(userID))
}

func (r *UserRepository) FindByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"referralCode": code})
}

// SetFCMToken stores the device token used for push notifications
func (r *UserRepository) SetFCMToken(ctx context.Context, userID, token string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.collection.UpdateOne(ctx, userFilter(userID),
		bson.M{"$set": bson.M{"fcmToken": token, "updatedAt": time.Now()}})
	if err != nil {
		return fmt.Errorf("update fcm token: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReferralOwner returns the ID of the user holding code
func (r *UserRepository) ReferralOwner(ctx context.Context, code string) (string, error) {
	user, err := r.FindByReferralCode(ctx, code)
	if err != nil {
		return "", err
	}
	return user.ID.Hex(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}

// EnsureReferralCode returns the user's referral code, generating one on first use
func (r *UserRepository) EnsureReferralCode(ctx context.Context, userID string) (string, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.ReferralCode != "" {
		return user.ReferralCode, nil
	}

	for attempt := 0; attempt < 5; attempt++ {
		code, err := utils.GenerateResellerReferralCode()
		if err != nil {
			return "", err
		}

		filter := userFilter(userID)
		filter["referralCode"] = bson.M{"$exists": false}
		update := bson.M{"$set": bson.M{"referralCode": code, "updatedAt": time.Now()}}

		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		res, err := r.collection.UpdateOne(qctx, filter, update)
		cancel()
		if mongo.IsDuplicateKeyError(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("set referral code: %w", err)
		}
		if res.MatchedCount == 0 {
			// Another request assigned a code first.
			user, err := r.FindByID(ctx, userID)
			if err != nil {
				return "", err
			}
			return user.ReferralCode, nil
		}
		return code, nil
	}
	return "", errors.New("could not allocate a unique referral code")
}
