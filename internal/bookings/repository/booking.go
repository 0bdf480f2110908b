package repository

import (
	"context"
	"errors"
	"fmt"
	bookingserrors "otithi/internal/bookings/errors"
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

const CollectionName = "Bookings"

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	FindByFilter(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	CountByFilter(ctx context.Context, filter *model.BookingFilter) (int64, error)
	FindRecent(ctx context.Context, n int) ([]*model.Booking, error)
	Revenue(ctx context.Context) (int64, error)
	FindActiveForListing(ctx context.Context, listingID string, from, to time.Time) ([]model.Booking, error)
	ListingsWithConflicts(ctx context.Context, checkIn, checkOut time.Time) ([]string, error)
	CountActiveForListing(ctx context.Context, listingID string) (int64, error)
	CountActiveForUser(ctx context.Context, userID string) (int64, error)
	UpdateStatus(ctx context.Context, id string, change *model.StatusChange) (*model.Booking, error)
	ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error
}

type mongoBookingRepository struct {
	cfg       *config.Config
	store     *client.MongoStore
	txManager mongodb.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	return &mongoBookingRepository{
		cfg:       cfg,
		store:     cfg.Client.Mongo,
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoBookingRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionName)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func bookingFilter(f *model.BookingFilter) bson.M {
	filter := bson.M{}
	if f == nil {
		return filter
	}
	if f.GuestID != "" {
		filter["guest_id"] = f.GuestID
	}
	if f.HostID != "" {
		filter["host_id"] = f.HostID
	}
	if f.ListingID != "" {
		filter["listing_id"] = f.ListingID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

// overlapFilter matches active bookings whose [check_in, check_out) meets
// [from, to).
func overlapFilter(from, to time.Time) bson.M {
	return bson.M{
		"status":    bson.M{"$in": model.ActiveBookingStatuses},
		"check_in":  bson.M{"$lt": to},
		"check_out": bson.M{"$gt": from},
	}
}

func (r *mongoBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	booking.CreatedAt = now
	booking.UpdatedAt = now

	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).InsertOne(ctx, booking)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

func (r *mongoBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, bson.M{"_id": oid}).Decode(&booking)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Booking, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var bookings []*model.Booking
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &bookings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, filter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (r *mongoBookingRepository) FindByFilter(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, bookingFilter(filter), opts)
}

func (r *mongoBookingRepository) CountByFilter(ctx context.Context, filter *model.BookingFilter) (int64, error) {
	return r.count(ctx, bookingFilter(filter))
}

func (r *mongoBookingRepository) FindRecent(ctx context.Context, n int) ([]*model.Booking, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(n))
	return r.find(ctx, bson.M{}, opts)
}

// Revenue sums total_price over bookings that earned money.
func (r *mongoBookingRepository) Revenue(ctx context.Context) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": bson.M{"$in": model.RevenueBookingStatuses}}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$total_price"}}}},
	}

	var total int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var rows []struct {
			Total int64 `bson:"total"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			total = rows[0].Total
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

func (r *mongoBookingRepository) FindActiveForListing(ctx context.Context, listingID string, from, to time.Time) ([]model.Booking, error) {
	filter := overlapFilter(from, to)
	filter["listing_id"] = listingID

	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}})
	found, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	out := make([]model.Booking, 0, len(found))
	for _, b := range found {
		out = append(out, *b)
	}
	return out, nil
}

func (r *mongoBookingRepository) ListingsWithConflicts(ctx context.Context, checkIn, checkOut time.Time) ([]string, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var values []any
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		values, err = r.collection(db).Distinct(ctx, "listing_id", overlapFilter(checkIn, checkOut))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find conflicting listings: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoBookingRepository) CountActiveForListing(ctx context.Context, listingID string) (int64, error) {
	return r.count(ctx, bson.M{
		"listing_id": listingID,
		"status":     bson.M{"$in": model.ActiveBookingStatuses},
	})
}

// CountActiveForUser counts active bookings where the user is guest or host.
func (r *mongoBookingRepository) CountActiveForUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{
		"$or":    bson.A{bson.M{"guest_id": userID}, bson.M{"host_id": userID}},
		"status": bson.M{"$in": model.ActiveBookingStatuses},
	})
}

// statusFields are the audit fields recorded alongside each status.
func statusFields(change *model.StatusChange) bson.M {
	set := bson.M{
		"status":     change.To,
		"updated_at": change.At,
	}
	switch change.To {
	case model.BookingConfirmed:
		set["confirmed_by"] = change.ActorID
		set["confirmed_at"] = change.At
	case model.BookingCheckedIn:
		set["checked_in_at"] = change.At
	case model.BookingCheckedOut:
		set["checked_out_at"] = change.At
	case model.BookingCancelled:
		set["cancelled_by"] = change.ActorID
		set["cancelled_at"] = change.At
		set["payment_status"] = model.PaymentRefunded
	}
	return set
}

// UpdateStatus applies change only while the booking is still in
// change.From and returns the updated document.
func (r *mongoBookingRepository) UpdateStatus(ctx context.Context, id string, change *model.StatusChange) (*model.Booking, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	change.At = change.At.UTC().Truncate(time.Millisecond)
	filter := bson.M{"_id": oid, "status": change.From}
	update := bson.M{"$set": statusFields(change)}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var booking model.Booking
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOneAndUpdate(ctx, filter, update, opts).Decode(&booking)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrStatusChanged
		}
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
