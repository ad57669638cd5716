// Package storage persists crawl and search results.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/IshaanNene/topicscout/internal/config"
	"github.com/IshaanNene/topicscout/internal/observability"
	"github.com/IshaanNene/topicscout/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of results.
	Store(ctx context.Context, results []*types.CrawlResult) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the backends named by cfg.Type, a comma-separated list such
// as "jsonl,mongodb". More than one backend yields a MultiStorage. Stored
// counts are recorded on metrics, which may be nil.
func New(ctx context.Context, cfg *config.StorageConfig, metrics *observability.Metrics, logger *slog.Logger) (Storage, error) {
	names := config.StorageTypes(cfg.Type)
	if len(names) == 0 {
		return nil, &types.StorageError{Backend: cfg.Type, Err: fmt.Errorf("no storage type configured")}
	}

	backends := make([]Storage, 0, len(names))
	for _, name := range names {
		s, err := newBackend(ctx, name, cfg, logger)
		if err != nil {
			for _, b := range backends {
				_ = b.Close()
			}
			return nil, err
		}
		backends = append(backends, s)
	}

	var s Storage = backends[0]
	if len(backends) > 1 {
		s = NewMultiStorage(backends, logger)
	}
	return &counted{Storage: s, metrics: metrics}, nil
}

func newBackend(ctx context.Context, name string, cfg *config.StorageConfig, logger *slog.Logger) (Storage, error) {
	switch name {
	case "json":
		return NewJSONStorage(filepath.Join(cfg.OutputPath, "results.json"), logger)
	case "jsonl":
		return NewJSONLStorage(filepath.Join(cfg.OutputPath, "results.jsonl"), logger)
	case "csv":
		return NewCSVStorage(filepath.Join(cfg.OutputPath, "results.csv"), logger)
	case "mongodb":
		return NewMongoStorage(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	default:
		return nil, &types.StorageError{Backend: name, Err: fmt.Errorf("unsupported storage type")}
	}
}

// counted records every successful Store on the metrics counters.
type counted struct {
	Storage
	metrics *observability.Metrics
}

func (c *counted) Store(ctx context.Context, results []*types.CrawlResult) error {
	if err := c.Storage.Store(ctx, results); err != nil {
		return err
	}
	c.metrics.RecordStored(len(results))
	return nil
}
