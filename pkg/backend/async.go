package backend

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/grokify/bytelens/pkg/scan"
	"github.com/grokify/mogo/log/slogutil"
)

// batchTimeout bounds a single StoreBatch call made by a writer.
const batchTimeout = 30 * time.Second

// AsyncConfig configures AsyncRecordStoreWrapper. Zero values take the
// defaults from DefaultAsyncConfig.
type AsyncConfig struct {
	QueueSize   int
	BatchSize   int
	FlushPeriod time.Duration
	Workers     int

	// Block makes Store wait for queue space instead of dropping the
	// record. Scans set it; the API server prefers to shed load.
	Block bool

	Metrics Metrics
	Logger  *slog.Logger
}

func DefaultAsyncConfig() *AsyncConfig {
	return &AsyncConfig{
		QueueSize:   10000,
		BatchSize:   100,
		FlushPeriod: 100 * time.Millisecond,
		Workers:     2,
	}
}

func (c *AsyncConfig) withDefaults() AsyncConfig {
	out := *DefaultAsyncConfig()
	if c == nil {
		out.Metrics = NoopMetrics{}
		out.Logger = slogutil.Null()
		return out
	}
	out.Block = c.Block
	out.Metrics = c.Metrics
	out.Logger = c.Logger
	if c.QueueSize > 0 {
		out.QueueSize = c.QueueSize
	}
	if c.BatchSize > 0 {
		out.BatchSize = c.BatchSize
	}
	if c.FlushPeriod > 0 {
		out.FlushPeriod = c.FlushPeriod
	}
	if c.Workers > 0 {
		out.Workers = c.Workers
	}
	if out.Metrics == nil {
		out.Metrics = NoopMetrics{}
	}
	if out.Logger == nil {
		out.Logger = slogutil.Null()
	}
	return out
}

// AsyncRecordStoreWrapper queues records and writes them to the wrapped
// store in batches from background workers, so analysis never waits on
// storage.
type AsyncRecordStoreWrapper struct {
	store RecordStore
	cfg   AsyncConfig
	queue chan *scan.Record

	// pending counts records queued or held in a writer's batch.
	pending atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewAsyncRecordStore starts cfg.Workers writers in front of store.
func NewAsyncRecordStore(store RecordStore, cfg *AsyncConfig) *AsyncRecordStoreWrapper {
	c := cfg.withDefaults()
	w := &AsyncRecordStoreWrapper{
		store: store,
		cfg:   c,
		queue: make(chan *scan.Record, c.QueueSize),
		done:  make(chan struct{}),
	}

	w.wg.Add(c.Workers)
	for i := 0; i < c.Workers; i++ {
		go w.write(i)
	}
	return w
}

// Store assigns rec an ID and queues it. When the queue is full the record
// is dropped, or with Block set, Store waits until there is room or ctx is
// done.
func (w *AsyncRecordStoreWrapper) Store(ctx context.Context, rec *scan.Record) error {
	if rec == nil {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrStoreClosed
	}

	ensureID(rec)
	w.pending.Add(1)

	select {
	case w.queue <- rec:
		w.cfg.Metrics.SetQueueDepth(len(w.queue))
		return nil
	default:
	}

	if !w.cfg.Block {
		w.pending.Add(-1)
		w.dropped.Add(1)
		w.cfg.Metrics.IncStoreError()
		return nil
	}

	select {
	case w.queue <- rec:
		w.cfg.Metrics.SetQueueDepth(len(w.queue))
		return nil
	case <-ctx.Done():
		w.pending.Add(-1)
		return ctx.Err()
	}
}

func (w *AsyncRecordStoreWrapper) StoreBatch(ctx context.Context, recs []*scan.Record) error {
	for _, rec := range recs {
		if err := w.Store(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// QueueDepth is the number of records waiting for a writer.
func (w *AsyncRecordStoreWrapper) QueueDepth() int { return len(w.queue) }

// Dropped is the number of records discarded because the queue was full.
func (w *AsyncRecordStoreWrapper) Dropped() int64 { return w.dropped.Load() }

// Failed is the number of records in batches the wrapped store rejected.
func (w *AsyncRecordStoreWrapper) Failed() int64 { return w.failed.Load() }

// Unwrap returns the wrapped store.
func (w *AsyncRecordStoreWrapper) Unwrap() RecordStore { return w.store }

// Flush waits until every accepted record has been handed to the wrapped
// store.
func (w *AsyncRecordStoreWrapper) Flush(ctx context.Context) error {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()

	for w.pending.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

// Close stops accepting records, lets the writers drain the queue and then
// closes the wrapped store.
func (w *AsyncRecordStoreWrapper) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()

	if n := w.dropped.Load(); n > 0 {
		w.cfg.Logger.Warn("records dropped by full write queue", "count", n)
	}
	return w.store.Close()
}

// Handle lets the wrapper be registered directly as a scan handler.
func (w *AsyncRecordStoreWrapper) Handle(rec *scan.Record) {
	_ = w.Store(context.Background(), rec)
}

// write is one writer goroutine. It sends a batch when it is full or when
// the flush period passes, and drains the queue on Close.
func (w *AsyncRecordStoreWrapper) write(id int) {
	defer w.wg.Done()

	batch := make([]*scan.Record, 0, w.cfg.BatchSize)
	send := func() {
		if len(batch) == 0 {
			return
		}
		w.sendBatch(id, batch)
		batch = batch[:0]
	}
	add := func(rec *scan.Record) {
		batch = append(batch, rec)
		if len(batch) >= w.cfg.BatchSize {
			send()
		}
	}

	tick := time.NewTicker(w.cfg.FlushPeriod)
	defer tick.Stop()

	for {
		select {
		case rec := <-w.queue:
			add(rec)
		case <-tick.C:
			send()
		case <-w.done:
			for {
				select {
				case rec := <-w.queue:
					add(rec)
				default:
					send()
					return
				}
			}
		}
	}
}

func (w *AsyncRecordStoreWrapper) sendBatch(id int, batch []*scan.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	start := time.Now()
	err := w.store.StoreBatch(ctx, batch)
	w.cfg.Metrics.ObserveStoreDuration(time.Since(start))

	if err != nil {
		w.failed.Add(int64(len(batch)))
		w.cfg.Metrics.IncStoreError()
		w.cfg.Logger.Error("failed to write record batch",
			"writer", id, "records", len(batch), "error", err)
	}

	w.pending.Add(-int64(len(batch)))
	w.cfg.Metrics.SetQueueDepth(len(w.queue))
}

var _ AsyncRecordStore = (*AsyncRecordStoreWrapper)(nil)
