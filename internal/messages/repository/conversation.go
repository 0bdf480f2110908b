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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ConversationsCollectionName = "Conversations"

type ConversationRepository interface {
	// Touch creates the conversation on first use and records the latest
	// message on it.
	Touch(ctx context.Context, id string, participants []string, lastMessage string, at time.Time) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindByParticipant(ctx context.Context, userID string, limit int, offset int64) ([]*model.Conversation, error)
	CountByParticipant(ctx context.Context, userID string) (int64, error)
	DeleteByParticipant(ctx context.Context, userID string) error
}

type mongoConversationRepository struct {
	cfg   *config.Config
	store *client.MongoStore
}

func NewMongoConversationRepository(cfg *config.Config) ConversationRepository {
	return &mongoConversationRepository{
		cfg:   cfg,
		store: cfg.Client.Mongo,
	}
}

func (r *mongoConversationRepository) collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(ConversationsCollectionName)
}

func (r *mongoConversationRepository) Touch(ctx context.Context, id string, participants []string, lastMessage string, at time.Time) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	at = at.UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"last_message":    lastMessage,
			"last_message_at": at,
		},
		"$setOnInsert": bson.M{
			"participants": participants,
			"created_at":   at,
		},
	}

	err := r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert conversation: %w", err)
	}
	return nil
}

func (r *mongoConversationRepository) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var conv model.Conversation
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		return r.collection(db).FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, messageserrors.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

func (r *mongoConversationRepository) FindByParticipant(ctx context.Context, userID string, limit int, offset int64) ([]*model.Conversation, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "last_message_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	var convs []*model.Conversation
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		cursor, err := r.collection(db).Find(ctx, bson.M{"participants": userID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &convs)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find conversations: %w", err)
	}
	return convs, nil
}

func (r *mongoConversationRepository) CountByParticipant(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var count int64
	err := r.store.Do(ctx, func(db *mongo.Database) error {
		var err error
		count, err = r.collection(db).CountDocuments(ctx, bson.M{"participants": userID})
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

func (r *mongoConversationRepository) DeleteByParticipant(ctx context.Context, userID string) error {
	ctx, cancel := mongodb.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	return r.store.Do(ctx, func(db *mongo.Database) error {
		_, err := r.collection(db).DeleteMany(ctx, bson.M{"participants": userID})
		return err
	})
}
