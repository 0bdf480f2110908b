package repository

import (
	"context"
	"errors"
	"fmt"
	reviewserrors "otithi/internal/reviews/errors"
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

const CollectionName = "Reviews"

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	FindByBooking(ctx context.Context, bookingID string) (*model.Review, error)
	FindByListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Review, error)
	CountByListing(ctx context.Context, listingID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error
}

type mongoReviewRepository struct {
	cfg       *config.Config
	store     *client.MongoStore
	txManager mongodb.TransactionManager
}

func NewMongoReviewRepository(cfg *config.Config) ReviewRepository {
	return &mongoReviewRepository{
		cfg:       cfg,
		store:     cfg.Client.Mongo,
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoReviewRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionName)
}

// Create relies on the unique booking_id index to reject a second review.
func (r *mongoReviewRepository) Create(ctx context.Context, review *model.Review) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	review.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).InsertOne(ctx, review)
		return err
	})
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return reviewserrors.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		review.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReviewRepository) FindByBooking(ctx context.Context, bookingID string) (*model.Review, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var review model.Review
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, bson.M{"booking_id": bookingID}).Decode(&review)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reviewserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find review: %w", err)
	}
	return &review, nil
}

func (r *mongoReviewRepository) FindByListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Review, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	var reviews []*model.Review
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, bson.M{"listing_id": listingID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &reviews)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find reviews: %w", err)
	}
	return reviews, nil
}

func (r *mongoReviewRepository) CountByListing(ctx context.Context, listingID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, bson.M{"listing_id": listingID})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

func (r *mongoReviewRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
