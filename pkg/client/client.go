package client

import (
	"context"
	"otithi/pkg/logger"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	Mongo *MongoStore
	Redis *redis.Client
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, opts MongoOptions) {
	store := NewMongoStore(log, opts)
	if err := store.Connect(context.Background()); err != nil {
		log.Fatal("Failed to connect to MongoDB",
			"error", err,
			"attempts", opts.RetryAttempts,
		)
	}

	log.Info("Successfully connected to MongoDB", "database", opts.Database)
	c.Mongo = store
}

// SetRedis connects to Redis. Redis is optional: on failure the service keeps
// running with in-memory sessions and no cache.
func (c *Client) SetRedis(log *logger.Logger, redisURL string, timeout time.Duration) {
	if redisURL == "" {
		log.Warn("Redis URL not set, falling back to in-memory stores")
		return
	}

	rdb, err := NewRedis(context.Background(), redisURL, timeout)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory stores", "error", err)
		return
	}

	log.Info("Successfully connected to Redis")
	c.Redis = rdb
}

func (c *Client) GracefulShutdown(log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.Mongo != nil {
		if err := c.Mongo.Disconnect(ctx); err != nil {
			log.Error("Failed to disconnect MongoDB", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			log.Error("Failed to close Redis", "error", err)
		}
	}
}
