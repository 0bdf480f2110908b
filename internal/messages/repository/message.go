package repository

import (
	"context"
	"errors"
	"fmt"
	messageserrors "otithi/internal/messages/errors"
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

const MessagesCollectionName = "Messages"

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindByID(ctx context.Context, id string) (*model.Message, error)
	FindByConversation(ctx context.Context, conversationID string, limit int, offset int64) ([]*model.Message, error)
	CountByConversation(ctx context.Context, conversationID string) (int64, error)
	MarkRead(ctx context.Context, id, receiverID string, at time.Time) error
	MarkConversationRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, receiverID string, at time.Time) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
	// UnreadByConversation returns unread counts keyed by conversation id.
	UnreadByConversation(ctx context.Context, receiverID string, conversationIDs []string) (map[string]int64, error)
	DeleteByUser(ctx context.Context, userID string) error
	ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error
}

type mongoMessageRepository struct {
	cfg       *config.Config
	store     *client.MongoStore
	txManager mongodb.TransactionManager
}

func NewMongoMessageRepository(cfg *config.Config) MessageRepository {
	return &mongoMessageRepository{
		cfg:       cfg,
		store:     cfg.Client.Mongo,
		txManager: mongodb.NewTransactionManager(cfg.Client.Mongo.Client),
	}
}

func (r *mongoMessageRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(MessagesCollectionName)
}

func unread(receiverID string) bson.M {
	return bson.M{"receiver_id": receiverID, "read_at": nil}
}

func (r *mongoMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	msg.CreatedAt = msg.CreatedAt.UTC().Truncate(time.Millisecond)
	msg.ReadAt = nil

	var result *mongo.InsertOneResult
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		result, err = r.collection(db).InsertOne(ctx, msg)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid.Hex()
	}
	return nil
}

func (r *mongoMessageRepository) FindByID(ctx context.Context, id string) (*model.Message, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", messageserrors.ErrInvalidID, id)
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var msg model.Message
	err = r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, bson.M{"_id": oid}).Decode(&msg)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, messageserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find message: %w", err)
	}
	return &msg, nil
}

func (r *mongoMessageRepository) FindByConversation(ctx context.Context, conversationID string, limit int, offset int64) ([]*model.Message, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	var msgs []*model.Message
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &msgs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	return msgs, nil
}

func (r *mongoMessageRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, filter)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (r *mongoMessageRepository) CountByConversation(ctx context.Context, conversationID string) (int64, error) {
	return r.count(ctx, bson.M{"conversation_id": conversationID})
}

func (r *mongoMessageRepository) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	return r.count(ctx, unread(receiverID))
}

func (r *mongoMessageRepository) markRead(ctx context.Context, filter bson.M, at time.Time) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"read_at": at.UTC().Truncate(time.Millisecond)}}

	var modified int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		result, err := r.collection(db).UpdateMany(ctx, filter, update)
		if err != nil {
			return err
		}
		modified = result.ModifiedCount
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return modified, nil
}

// MarkRead is a no-op for a message that is already read.
func (r *mongoMessageRepository) MarkRead(ctx context.Context, id, receiverID string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", messageserrors.ErrInvalidID, id)
	}
	filter := unread(receiverID)
	filter["_id"] = oid
	_, err = r.markRead(ctx, filter, at)
	return err
}

func (r *mongoMessageRepository) MarkConversationRead(ctx context.Context, conversationID, receiverID string, at time.Time) (int64, error) {
	filter := unread(receiverID)
	filter["conversation_id"] = conversationID
	return r.markRead(ctx, filter, at)
}

func (r *mongoMessageRepository) MarkAllRead(ctx context.Context, receiverID string, at time.Time) (int64, error) {
	return r.markRead(ctx, unread(receiverID), at)
}

func (r *mongoMessageRepository) UnreadByConversation(ctx context.Context, receiverID string, conversationIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return counts, nil
	}

	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := unread(receiverID)
	match["conversation_id"] = bson.M{"$in": conversationIDs}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$conversation_id", "count": bson.M{"$sum": 1}}}},
	}

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)

		var rows []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return err
		}
		for _, row := range rows {
			counts[row.ID] = row.Count
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return counts, nil
}

func (r *mongoMessageRepository) DeleteByUser(ctx context.Context, userID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID},
		bson.M{"receiver_id": userID},
	}}
	return r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).DeleteMany(ctx, filter)
		return err
	})
}

func (r *mongoMessageRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
