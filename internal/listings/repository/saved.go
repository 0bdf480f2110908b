package repository

import (
	"context"
	"fmt"
	listingserrors "otithi/internal/listings/errors"
	"otithi/pkg/client"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	"otithi/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const SavedCollectionName = "Saved_listings"

type SavedListingRepository interface {
	Save(ctx context.Context, userID, listingID string) error
	Delete(ctx context.Context, userID, listingID string) error
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.SavedListing, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	DeleteByListing(ctx context.Context, listingID string) error
	DeleteByUser(ctx context.Context, userID string) error
}

type mongoSavedListingRepository struct {
	cfg   *config.Config
	store *client.MongoStore
}

func NewMongoSavedListingRepository(cfg *config.Config) SavedListingRepository {
	return &mongoSavedListingRepository{
		cfg:   cfg,
		store: cfg.Client.Mongo,
	}
}

func (r *mongoSavedListingRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(SavedCollectionName)
}

// Save upserts on (user_id, listing_id), so saving twice is a no-op.
func (r *mongoSavedListingRepository) Save(ctx context.Context, userID, listingID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"user_id": userID, "listing_id": listingID}
	update := bson.M{"$setOnInsert": bson.M{
		"user_id":    userID,
		"listing_id": listingID,
		"created_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		return err
	})
	if err != nil && !mongodb.IsDuplicateKey(err) {
		return fmt.Errorf("failed to save listing: %w", err)
	}
	return nil
}

func (r *mongoSavedListingRepository) Delete(ctx context.Context, userID, listingID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var result *mongo.DeleteResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).DeleteOne(ctx, bson.M{"user_id": userID, "listing_id": listingID})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to unsave listing: %w", err)
	}
	if result.DeletedCount == 0 {
		return listingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSavedListingRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.SavedListing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	var saved []*model.SavedListing
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, bson.M{"user_id": userID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &saved)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find saved listings: %w", err)
	}
	return saved, nil
}

func (r *mongoSavedListingRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, bson.M{"user_id": userID})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count saved listings: %w", err)
	}
	return count, nil
}

func (r *mongoSavedListingRepository) DeleteByListing(ctx context.Context, listingID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).DeleteMany(ctx, bson.M{"listing_id": listingID})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete saved entries: %w", err)
	}
	return nil
}

func (r *mongoSavedListingRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).DeleteMany(ctx, bson.M{"user_id": userID})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete saved entries for user: %w", err)
	}
	return nil
}
