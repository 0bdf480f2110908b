package client

import (
	"context"
	"fmt"
	mongodb "otithi/pkg/db/mongo"
	"otithi/pkg/logger"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOptions struct {
	URI           string
	Database      string
	ConnTimeout   time.Duration
	RetryAttempts int
	RetrySleep    time.Duration
}

// MongoStore owns the driver client and replaces it when the connection is
// lost. Callers go through Do so a dropped connection is re-established and
// the call retried a fixed number of times.
type MongoStore struct {
	opts MongoOptions
	log  *logger.Logger

	mu         sync.RWMutex
	client     *mongo.Client
	generation uint64

	reconnectMu sync.Mutex
}

func NewMongoStore(log *logger.Logger, opts MongoOptions) *MongoStore {
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	return &MongoStore{opts: opts, log: log}
}

func (s *MongoStore) Connect(ctx context.Context) error {
	return mongodb.Retry(ctx, s.opts.RetryAttempts, s.opts.RetrySleep,
		func() error {
			c, err := s.dial(ctx)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.client = c
			s.generation++
			s.mu.Unlock()
			return nil
		},
		nil,
		func(attempt int, err error) {
			s.log.Warn("MongoDB connection attempt failed",
				"attempt", attempt,
				"max_attempts", s.opts.RetryAttempts,
				"error", err,
			)
		},
	)
}

func (s *MongoStore) dial(ctx context.Context) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ConnTimeout)
	defer cancel()

	c, err := mongo.Connect(ctx, options.Client().ApplyURI(s.opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := c.Ping(ctx, nil); err != nil {
		_ = c.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return c, nil
}

// Reconnect swaps in a fresh client. seen is the generation the caller
// observed failing; if another goroutine already replaced that client the
// call is a no-op.
func (s *MongoStore) Reconnect(ctx context.Context, seen uint64) error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	s.mu.RLock()
	current, old := s.generation, s.client
	s.mu.RUnlock()
	if current != seen {
		return nil
	}

	c, err := s.dial(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.client = c
	s.generation++
	s.mu.Unlock()

	if old != nil {
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), s.opts.ConnTimeout)
			defer cancel()
			_ = old.Disconnect(dctx)
		}()
	}
	s.log.Info("Reconnected to MongoDB", "generation", current+1)
	return nil
}

func (s *MongoStore) snapshot() (*mongo.Client, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.client, s.generation
}

func (s *MongoStore) Client() *mongo.Client {
	c, _ := s.snapshot()
	return c
}

func (s *MongoStore) Database() *mongo.Database {
	return s.Client().Database(s.opts.Database)
}

func (s *MongoStore) DatabaseName() string {
	return s.opts.Database
}

// Do runs fn against the current database. Connection failures trigger a
// reconnect and a retry after the configured sleep. Inside a transaction fn
// runs once; the driver owns transaction retries.
func (s *MongoStore) Do(ctx context.Context, fn func(db *mongo.Database) error) error {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return fn(s.Database())
	}

	var gen uint64
	return mongodb.Retry(ctx, s.opts.RetryAttempts, s.opts.RetrySleep,
		func() error {
			var c *mongo.Client
			c, gen = s.snapshot()
			return fn(c.Database(s.opts.Database))
		},
		mongodb.IsConnectionError,
		func(attempt int, err error) {
			s.log.Warn("MongoDB call failed, reconnecting",
				"attempt", attempt,
				"max_attempts", s.opts.RetryAttempts,
				"error", err,
			)
			if rerr := s.Reconnect(ctx, gen); rerr != nil {
				s.log.Error("MongoDB reconnect failed", "error", rerr)
			}
		},
	)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.Client().Ping(ctx, nil)
}

func (s *MongoStore) Disconnect(ctx context.Context) error {
	c := s.Client()
	if c == nil {
		return nil
	}
	return c.Disconnect(ctx)
}
