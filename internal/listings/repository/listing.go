package repository

import (
	"context"
	"errors"
	"fmt"
	listingserrors "otithi/internal/listings/errors"
	"otithi/pkg/client"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	"otithi/pkg/model"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Listings"
	// ReviewsCollectionName is read by ApplyRating.
	ReviewsCollectionName = "Reviews"

	MaxImages = 20
)

type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	FindByIDs(ctx context.Context, ids []string) ([]*model.Listing, error)
	Search(ctx context.Context, search *model.ListingSearch, limit int, offset int64) ([]*model.Listing, error)
	CountSearch(ctx context.Context, search *model.ListingSearch) (int64, error)
	FindByFilter(ctx context.Context, filter *model.ListingFilter, limit int, offset int64) ([]*model.Listing, error)
	CountByFilter(ctx context.Context, filter *model.ListingFilter) (int64, error)
	FindRecent(ctx context.Context, n int) ([]*model.Listing, error)
	Update(ctx context.Context, listing *model.Listing, fromStatus string) error
	SetStatus(ctx context.Context, id, status, reason string) error
	SetAvailable(ctx context.Context, id string, available bool) error
	AddImage(ctx context.Context, id, url string) error
	RemoveImage(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
	UnpublishByHost(ctx context.Context, hostID, reason string) (int64, error)
	ApplyRating(ctx context.Context, id string) (*model.RatingSummary, error)
	ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error
}

type mongoListingRepository struct {
	cfg       *config.Config
	store     *client.MongoStore
	txManager mongodb.TransactionManager
}

func NewMongoListingRepository(cfg *config.Config) ListingRepository {
	return &mongoListingRepository{
		cfg:       cfg,
		store:     cfg.Client.Mongo,
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoListingRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionName)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", listingserrors.ErrInvalidID, id)
	}
	return oid, nil
}

// objectIDs drops ids that are not valid hex; they cannot match anything.
func objectIDs(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func searchFilter(s *model.ListingSearch) bson.M {
	filter := bson.M{
		"status":    model.ListingApproved,
		"available": true,
	}

	if s.Location != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(s.Location), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"location": pattern},
			bson.M{"city": pattern},
		}
	}
	if s.PropertyType != "" {
		filter["property_type"] = s.PropertyType
	}
	if s.Guests > 0 {
		filter["max_guests"] = bson.M{"$gte": s.Guests}
	}

	price := bson.M{}
	if s.MinPrice > 0 {
		price["$gte"] = s.MinPrice
	}
	if s.MaxPrice > 0 {
		price["$lte"] = s.MaxPrice
	}
	if len(price) > 0 {
		filter["price_per_night"] = price
	}

	if len(s.ExcludeIDs) > 0 {
		filter["_id"] = bson.M{"$nin": objectIDs(s.ExcludeIDs)}
	}
	return filter
}

func listingFilter(f *model.ListingFilter) bson.M {
	filter := bson.M{}
	if f == nil {
		return filter
	}
	if f.HostID != "" {
		filter["host_id"] = f.HostID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	return filter
}

func newestFirst(limit int, offset int64) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
}

func (r *mongoListingRepository) Create(ctx context.Context, listing *model.Listing) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	listing.CreatedAt = now
	listing.UpdatedAt = now
	if listing.Images == nil {
		listing.Images = []string{}
	}
	if listing.Amenities == nil {
		listing.Amenities = []string{}
	}

	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).InsertOne(ctx, listing)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		listing.ID = oid.Hex()
	}
	return nil
}

func (r *mongoListingRepository) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var listing model.Listing
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, bson.M{"_id": oid}).Decode(&listing)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return &listing, nil
}

func (r *mongoListingRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Listing, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var listings []*model.Listing
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &listings)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find listings: %w", err)
	}
	return listings, nil
}

func (r *mongoListingRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, filter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}

func (r *mongoListingRepository) FindByIDs(ctx context.Context, ids []string) ([]*model.Listing, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []*model.Listing{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find())
}

func (r *mongoListingRepository) Search(ctx context.Context, search *model.ListingSearch, limit int, offset int64) ([]*model.Listing, error) {
	return r.find(ctx, searchFilter(search), newestFirst(limit, offset))
}

func (r *mongoListingRepository) CountSearch(ctx context.Context, search *model.ListingSearch) (int64, error) {
	return r.count(ctx, searchFilter(search))
}

func (r *mongoListingRepository) FindByFilter(ctx context.Context, filter *model.ListingFilter, limit int, offset int64) ([]*model.Listing, error) {
	return r.find(ctx, listingFilter(filter), newestFirst(limit, offset))
}

func (r *mongoListingRepository) CountByFilter(ctx context.Context, filter *model.ListingFilter) (int64, error) {
	return r.count(ctx, listingFilter(filter))
}

func (r *mongoListingRepository) FindRecent(ctx context.Context, n int) ([]*model.Listing, error) {
	return r.find(ctx, bson.M{}, newestFirst(n, 0))
}

func (r *mongoListingRepository) update(ctx context.Context, filter bson.M, update bson.M) (*mongo.UpdateResult, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var result *mongo.UpdateResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).UpdateOne(ctx, filter, update)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}
	return result, nil
}

func (r *mongoListingRepository) setByID(ctx context.Context, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.update(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return listingserrors.ErrNotFound
	}
	return nil
}

// Update writes every editable field along with status. It only applies
// while the stored status is still fromStatus. Images, rating and ownership
// have their own paths.
func (r *mongoListingRepository) Update(ctx context.Context, listing *model.Listing, fromStatus string) error {
	oid, err := objectID(listing.ID)
	if err != nil {
		return err
	}

	set := bson.M{
		"title":            listing.Title,
		"description":      listing.Description,
		"property_type":    listing.PropertyType,
		"location":         listing.Location,
		"address":          listing.Address,
		"city":             listing.City,
		"country":          listing.Country,
		"price_per_night":  listing.PricePerNight,
		"max_guests":       listing.MaxGuests,
		"bedrooms":         listing.Bedrooms,
		"bathrooms":        listing.Bathrooms,
		"amenities":        listing.Amenities,
		"status":           listing.Status,
		"rejection_reason": listing.RejectionReason,
		"updated_at":       time.Now().UTC().Truncate(time.Millisecond),
	}
	result, err := r.update(ctx, bson.M{"_id": oid, "status": fromStatus}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, listing.ID); err != nil {
			return err
		}
		return listingserrors.ErrStatusChanged
	}
	return nil
}

func (r *mongoListingRepository) SetStatus(ctx context.Context, id, status, reason string) error {
	return r.setByID(ctx, id, bson.M{"status": status, "rejection_reason": reason})
}

func (r *mongoListingRepository) SetAvailable(ctx context.Context, id string, available bool) error {
	return r.setByID(ctx, id, bson.M{"available": available})
}

func (r *mongoListingRepository) AddImage(ctx context.Context, id, url string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	// The filter only matches while there is room for one more image.
	filter := bson.M{"_id": oid}
	filter[fmt.Sprintf("images.%d", MaxImages-1)] = bson.M{"$exists": false}
	update := bson.M{
		"$push": bson.M{"images": url},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.update(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return listingserrors.ErrTooManyImages
	}
	return nil
}

func (r *mongoListingRepository) RemoveImage(ctx context.Context, id, url string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "images": url}
	update := bson.M{
		"$pull": bson.M{"images": url},
		"$set":  bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.update(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return listingserrors.ErrImageNotFound
	}
	return nil
}

func (r *mongoListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	var result *mongo.DeleteResult
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).DeleteOne(ctx, bson.M{"_id": oid})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	if result.DeletedCount == 0 {
		return listingserrors.ErrNotFound
	}
	return nil
}

// UnpublishByHost takes every listing of a host off the market.
func (r *mongoListingRepository) UnpublishByHost(ctx context.Context, hostID, reason string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":           model.ListingRejected,
		"rejection_reason": reason,
		"available":        false,
		"updated_at":       time.Now().UTC().Truncate(time.Millisecond),
	}}

	var modified int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		res, err := r.collection(db).UpdateMany(ctx, bson.M{"host_id": hostID}, update)
		if err != nil {
			return err
		}
		modified = res.ModifiedCount
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to unpublish listings: %w", err)
	}
	return modified, nil
}

// ApplyRating recomputes rating and reviews_count from the Reviews
// collection. Run it in the same transaction as the review write.
func (r *mongoListingRepository) ApplyRating(ctx context.Context, id string) (*model.RatingSummary, error) {
	if _, err := objectID(id); err != nil {
		return nil, err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"listing_id": id}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}

	summary := &model.RatingSummary{}
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := db.Collection(ReviewsCollectionName).Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var rows []model.RatingSummary
		if err := cursor.All(ctx, &rows); err != nil {
			return err
		}
		if len(rows) > 0 {
			*summary = rows[0]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}

	summary.Average = model.RoundRating(summary.Average)
	if err := r.setByID(ctx, id, bson.M{"rating": summary.Average, "reviews_count": summary.Count}); err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *mongoListingRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
