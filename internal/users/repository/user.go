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

const CollectionName = "Users"

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindAll(ctx context.Context, role string, limit int, offset int64) ([]*model.User, error)
	FindRecent(ctx context.Context, n int) ([]*model.User, error)
	Count(ctx context.Context, role string) (int64, error)
	UpdateProfile(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetVerified(ctx context.Context, id string, verified bool) error
	SetRole(ctx context.Context, id, role string) error
	SetNID(ctx context.Context, id string, nid *model.NIDVerification) error
	ReviewNID(ctx context.Context, id string, nid *model.NIDVerification, verified bool) error
	FindPendingNID(ctx context.Context, limit int, offset int64) ([]*model.User, error)
	CountPendingNID(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error
}

type mongoUserRepository struct {
	cfg       *config.Config
	store     *client.MongoStore
	txManager mongodb.TransactionManager
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	return &mongoUserRepository{
		cfg:       cfg,
		store:     cfg.Client.Mongo,
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoUserRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(CollectionName)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", userserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func roleFilter(role string) bson.M {
	if role == "" {
		return bson.M{}
	}
	return bson.M{"role": role}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.JoinedAt = now
	user.UpdatedAt = now

	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).InsertOne(ctx, user)
		return err
	})
	if err != nil {
		if mongodb.IsDuplicateKey(err) {
			return userserrors.ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		user.ID = oid.Hex()
	}
	return nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var user model.User
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, filter).Decode(&user)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, userserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.User, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var users []*model.User
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &users)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	return users, nil
}

func (r *mongoUserRepository) FindAll(ctx context.Context, role string, limit int, offset int64) ([]*model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "joined_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, roleFilter(role), opts)
}

func (r *mongoUserRepository) FindRecent(ctx context.Context, n int) ([]*model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "joined_at", Value: -1}}).
		SetLimit(int64(n))
	return r.find(ctx, bson.M{}, opts)
}

func (r *mongoUserRepository) Count(ctx context.Context, role string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, roleFilter(role))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *mongoUserRepository) updateByID(ctx context.Context, id string, set bson.M) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	set["updated_at"] = time.Now().UTC().Truncate(time.Millisecond)

	var result *mongo.UpdateResult
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return userserrors.ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	return r.updateByID(ctx, user.ID, bson.M{
		"full_name":     user.FullName,
		"phone":         user.Phone,
		"bio":           user.Bio,
		"profile_photo": user.ProfilePhoto,
	})
}

func (r *mongoUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateByID(ctx, id, bson.M{"password_hash": passwordHash})
}

func (r *mongoUserRepository) SetVerified(ctx context.Context, id string, verified bool) error {
	return r.updateByID(ctx, id, bson.M{"verified": verified})
}

func (r *mongoUserRepository) SetRole(ctx context.Context, id, role string) error {
	return r.updateByID(ctx, id, bson.M{"role": role})
}

func (r *mongoUserRepository) SetNID(ctx context.Context, id string, nid *model.NIDVerification) error {
	return r.updateByID(ctx, id, bson.M{"nid": nid})
}

var pendingNID = bson.M{"nid.status": model.NIDPending}

// ReviewNID records the decision and the verified flag together, and only
// while the submission is still pending.
func (r *mongoUserRepository) ReviewNID(ctx context.Context, id string, nid *model.NIDVerification, verified bool) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": oid, "nid.status": model.NIDPending}
	update := bson.M{"$set": bson.M{
		"nid":        nid,
		"verified":   verified,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	var result *mongo.UpdateResult
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).UpdateOne(ctx, filter, update)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to review NID: %w", err)
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return userserrors.ErrNIDNotPending
	}
	return nil
}

// FindPendingNID lists hosts awaiting review, oldest submission first.
func (r *mongoUserRepository) FindPendingNID(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "nid.submitted_at", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)
	return r.find(ctx, pendingNID, opts)
}

func (r *mongoUserRepository) CountPendingNID(ctx context.Context) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, pendingNID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count pending NID submissions: %w", err)
	}
	return count, nil
}

func (r *mongoUserRepository) Delete(ctx context.Context, id string) error {
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
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.DeletedCount == 0 {
		return userserrors.ErrNotFound
	}
	return nil
}

func (r *mongoUserRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
