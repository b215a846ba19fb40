package backend

import (
	"context"
	"fmt"

	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/mogo/log/slogutil"
)

// Open creates the record store described by cfg, wrapped with an async
// writer when cfg.Async.Enabled is set. The logger on ctx receives SQL
// statements when cfg.Debug is set. A nil metrics uses NoopMetrics.
func Open(ctx context.Context, cfg config.StorageConfig, metrics Metrics) (RecordStore, error) {
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	var (
		store RecordStore
		err   error
	)

	switch cfg.Type {
	case config.StorageNone:
		return DiscardRecordStore{}, nil
	case "", config.StorageFile:
		store, err = NewFileRecordStore(&FileRecordStoreConfig{
			Path:    cfg.Output,
			Format:  Format(cfg.Format),
			Metrics: metrics,
		})
	case config.StorageMemory:
		store = NewMemoryRecordStore(&MemoryRecordStoreConfig{
			Capacity: cfg.MemoryCapacity,
			Metrics:  metrics,
		})
	case config.StorageDatabase:
		store, err = NewDatabaseRecordStore(ctx, &DatabaseRecordStoreConfig{
			DatabaseURL: cfg.Database,
			Metrics:     metrics,
			Debug:       cfg.Debug,
			Logger:      slogutil.LoggerFromContext(ctx, slogutil.Null()),
		})
	default:
		return nil, fmt.Errorf("unknown storage type: %q", cfg.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Type, err)
	}

	if cfg.Async.Enabled {
		store = NewAsyncRecordStore(store, &AsyncConfig{
			QueueSize:   cfg.Async.QueueSize,
			BatchSize:   cfg.Async.BatchSize,
			FlushPeriod: cfg.Async.FlushPeriod,
			Workers:     cfg.Async.Workers,
			Block:       cfg.Async.Block,
			Metrics:     metrics,
			Logger:      slogutil.LoggerFromContext(ctx, slogutil.Null()),
		})
	}

	return store, nil
}

// Querier returns the RecordQuerier behind store, looking through an async
// wrapper. It returns false when the store cannot be queried.
func Querier(store RecordStore) (RecordQuerier, bool) {
	if w, ok := store.(*AsyncRecordStoreWrapper); ok {
		store = w.Unwrap()
	}
	q, ok := store.(RecordQuerier)
	return q, ok
}
