package repository

import (
	"context"
	"errors"
	"fmt"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/client"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	"otithi/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const VerificationCollectionName = "Email_verifications"

type VerificationRepository interface {
	// Create retires the user's unused codes and stores v.
	Create(ctx context.Context, v *model.EmailVerification) error
	FindUnused(ctx context.Context, userID, code string) (*model.EmailVerification, error)
	// FindLatest returns the most recently issued code, used or not.
	FindLatest(ctx context.Context, userID string) (*model.EmailVerification, error)
	MarkUsed(ctx context.Context, id string) error
	InvalidateAll(ctx context.Context, userID string) error
}

type mongoVerificationRepository struct {
	cfg   *config.Config
	store *client.MongoStore
}

func NewMongoVerificationRepository(cfg *config.Config) VerificationRepository {
	return &mongoVerificationRepository{
		cfg:   cfg,
		store: cfg.Client.Mongo,
	}
}

func (r *mongoVerificationRepository) Create(ctx context.Context, v *model.EmailVerification) error {
	if err := r.InvalidateAll(ctx, v.UserID); err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = db.Collection(VerificationCollectionName).InsertOne(ctx, v)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		v.ID = oid.Hex()
	}
	return nil
}

func (r *mongoVerificationRepository) FindUnused(ctx context.Context, userID, code string) (*model.EmailVerification, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID, "code": code, "used": false}

	var v model.EmailVerification
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		return db.Collection(VerificationCollectionName).FindOne(ctx, filter).Decode(&v)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to find verification code: %w", err)
	}
	return &v, nil
}

func (r *mongoVerificationRepository) FindLatest(ctx context.Context, userID string) (*model.EmailVerification, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var v model.EmailVerification
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		return db.Collection(VerificationCollectionName).FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&v)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to find latest verification code: %w", err)
	}
	return &v, nil
}

func (r *mongoVerificationRepository) MarkUsed(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", userserrors.ErrInvalidID, id)
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var result *mongo.UpdateResult
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = db.Collection(VerificationCollectionName).UpdateOne(ctx,
			bson.M{"_id": oid, "used": false},
			bson.M{"$set": bson.M{"used": true}},
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to mark verification code used: %w", err)
	}
	if result.MatchedCount == 0 {
		return userserrors.ErrVerificationNotFound
	}
	return nil
}

func (r *mongoVerificationRepository) InvalidateAll(ctx context.Context, userID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := db.Collection(VerificationCollectionName).UpdateMany(ctx,
			bson.M{"user_id": userID, "used": false},
			bson.M{"$set": bson.M{"used": true}},
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate verification codes: %w", err)
	}
	return nil
}
