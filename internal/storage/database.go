package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/topicscout/internal/types"
)

// MongoStorage upserts results into a MongoDB collection keyed by result id,
// so re-crawling a URL replaces its document.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStorage connects to MongoDB and verifies the connection.
func NewMongoStorage(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	if uri == "" {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("mongo_uri is required")}
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoStorage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

func (s *MongoStorage) Store(ctx context.Context, results []*types.CrawlResult) error {
	models := upsertModels(results)
	if len(models) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("bulk write: %w", err)}
	}

	s.count += len(models)
	s.logger.Debug("results stored in mongodb",
		"count", len(models),
		"upserted", res.UpsertedCount,
		"modified", res.ModifiedCount,
		"total", s.count,
	)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "total_results", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// upsertModels builds one replace-or-insert per result with an id.
func upsertModels(results []*types.CrawlResult) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(results))
	for _, r := range results {
		if r == nil || r.ID == "" {
			continue
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.D{{Key: "_id", Value: r.ID}}).
			SetReplacement(r).
			SetUpsert(true))
	}
	return models
}

// --- Multi-Storage Fan-Out ---

// MultiStorage writes results to multiple backends.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(ctx context.Context, results []*types.CrawlResult) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(ctx, results); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
