package repository

import (
	"context"
	"fmt"
	bookingserrors "otithi/internal/bookings/errors"
	"otithi/pkg/client"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	"otithi/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LockCollectionName = "Booking_locks"

// BookingLockRepository serialises booking creation per listing. Locks are
// documents keyed by model.BookingLockID; a TTL index on expires_at removes
// abandoned ones.
type BookingLockRepository interface {
	Acquire(ctx context.Context, listingID, owner string, ttl time.Duration) error
	Release(ctx context.Context, listingID, owner string) error
}

type mongoBookingLockRepository struct {
	cfg   *config.Config
	store *client.MongoStore
	now   func() time.Time
}

func NewMongoBookingLockRepository(cfg *config.Config) BookingLockRepository {
	return &mongoBookingLockRepository{
		cfg:   cfg,
		store: cfg.Client.Mongo,
		now:   time.Now,
	}
}

func (r *mongoBookingLockRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(LockCollectionName)
}

// Acquire inserts the lock. The TTL monitor only runs about once a minute, so
// an expired lock that is still present is taken over explicitly.
func (r *mongoBookingLockRepository) Acquire(ctx context.Context, listingID, owner string, ttl time.Duration) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	id := model.BookingLockID(listingID)
	insert := func() error {
		now := r.now().UTC()
		lock := &model.BookingLock{
			ID:        id,
			ListingID: listingID,
			Owner:     owner,
			ExpiresAt: now.Add(ttl),
			CreatedAt: now,
		}
		return r.store.Do(ctx, func(db *mongo.Database) error {
			_, err := r.collection(db).InsertOne(ctx, lock)
			return err
		})
	}

	err := insert()
	if err == nil {
		return nil
	}
	if !mongodb.IsDuplicateKey(err) {
		return fmt.Errorf("failed to acquire booking lock: %w", err)
	}

	var removed int64
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		res, err := r.collection(db).DeleteOne(ctx, bson.M{"_id": id, "expires_at": bson.M{"$lte": r.now().UTC()}})
		if err != nil {
			return err
		}
		removed = res.DeletedCount
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear expired booking lock: %w", err)
	}
	if removed == 0 {
		return bookingserrors.ErrLockHeld
	}

	if err := insert(); err != nil {
		if mongodb.IsDuplicateKey(err) {
			return bookingserrors.ErrLockHeld
		}
		return fmt.Errorf("failed to acquire booking lock: %w", err)
	}
	return nil
}

// Release only deletes a lock this owner still holds.
func (r *mongoBookingLockRepository) Release(ctx context.Context, listingID, owner string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).DeleteOne(ctx, bson.M{"_id": model.BookingLockID(listingID), "owner": owner})
		return err
	})
}
