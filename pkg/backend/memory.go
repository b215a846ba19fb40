package backend

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/grokify/bytelens/pkg/scan"
	"github.com/montanaflynn/stats"
)

// MemoryRecordStore is a bounded in-memory record store. When full, the
// oldest record is evicted. Records can also expire after a TTL.
// Suitable for the HTTP server when no database is configured.
type MemoryRecordStore struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*memEntry
	head     *memEntry // newest
	tail     *memEntry // oldest
	metrics  Metrics
	stopChan chan struct{}
	closed   bool
}

type memEntry struct {
	rec      *scan.Record
	storedAt time.Time
	prev     *memEntry
	next     *memEntry
}

// MemoryRecordStoreConfig configures a MemoryRecordStore.
type MemoryRecordStoreConfig struct {
	// Capacity is the maximum number of records kept (default: 1000).
	Capacity int

	// TTL is how long records are kept (default: 0, no expiry).
	TTL time.Duration

	// CleanupInterval is how often expired records are removed (default: 1 minute).
	CleanupInterval time.Duration

	// Metrics for observability (optional).
	Metrics Metrics
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore(cfg *MemoryRecordStoreConfig) *MemoryRecordStore {
	if cfg == nil {
		cfg = &MemoryRecordStoreConfig{}
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 1000
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	store := &MemoryRecordStore{
		capacity: capacity,
		ttl:      cfg.TTL,
		items:    make(map[string]*memEntry),
		metrics:  metrics,
		stopChan: make(chan struct{}),
	}

	if store.ttl > 0 {
		go store.cleanupLoop(cleanupInterval)
	}

	return store
}

// Store saves a copy of the record, assigning an ID if it has none.
func (s *MemoryRecordStore) Store(ctx context.Context, rec *scan.Record) error {
	if rec == nil {
		return nil
	}

	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.metrics.IncStoreError()
		return ErrStoreClosed
	}

	ensureID(rec)
	cp := *rec

	if old, ok := s.items[cp.ID]; ok {
		s.remove(old)
	}

	entry := &memEntry{rec: &cp, storedAt: start}
	s.items[cp.ID] = entry
	s.addToFront(entry)

	for len(s.items) > s.capacity {
		s.evictOldest()
	}

	s.metrics.ObserveStoreDuration(time.Since(start))
	s.metrics.IncStoreSuccess()
	return nil
}

// StoreBatch saves multiple records.
func (s *MemoryRecordStore) StoreBatch(ctx context.Context, recs []*scan.Record) error {
	for _, rec := range recs {
		if err := s.Store(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the cleanup goroutine and drops all records.
func (s *MemoryRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stopChan)

	s.items = make(map[string]*memEntry)
	s.head = nil
	s.tail = nil
	return nil
}

// Handle implements scan.Handler for use with the scanner.
func (s *MemoryRecordStore) Handle(rec *scan.Record) {
	_ = s.Store(context.Background(), rec)
}

// Size returns the number of records held.
func (s *MemoryRecordStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Query returns summaries of records matching the filter.
func (s *MemoryRecordStore) Query(ctx context.Context, filter *RecordFilter) ([]*RecordSummary, error) {
	matches, err := s.match(filter)
	if err != nil {
		return nil, err
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matches) {
				matches = nil
			} else {
				matches = matches[filter.Offset:]
			}
		}
		if filter.Limit > 0 && len(matches) > filter.Limit {
			matches = matches[:filter.Limit]
		}
	}

	result := make([]*RecordSummary, len(matches))
	for i, rec := range matches {
		result[i] = Summarize(rec)
	}
	return result, nil
}

// GetByID returns a copy of the stored record.
func (s *MemoryRecordStore) GetByID(ctx context.Context, id string) (*scan.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	entry, ok := s.items[id]
	if !ok || s.expired(entry, time.Now()) {
		s.metrics.IncCacheMiss()
		return nil, ErrNotFound
	}

	s.metrics.IncCacheHit()
	cp := *entry.rec
	return &cp, nil
}

// Count returns the number of records matching the filter.
func (s *MemoryRecordStore) Count(ctx context.Context, filter *RecordFilter) (int64, error) {
	matches, err := s.match(filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

// Stats returns aggregate statistics for records matching the filter.
func (s *MemoryRecordStore) Stats(ctx context.Context, filter *RecordFilter) (*RecordStats, error) {
	matches, err := s.match(filter)
	if err != nil {
		return nil, err
	}
	return computeStats(matches), nil
}

// match returns the records matching filter, ordered by AnalyzedAt.
func (s *MemoryRecordStore) match(filter *RecordFilter) ([]*scan.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	now := time.Now()
	var matches []*scan.Record
	for e := s.tail; e != nil; e = e.prev {
		if s.expired(e, now) {
			continue
		}
		if filter.Match(e.rec) {
			matches = append(matches, e.rec)
		}
	}

	desc := filter != nil && filter.Desc
	sort.SliceStable(matches, func(i, j int) bool {
		if desc {
			return matches[i].AnalyzedAt.After(matches[j].AnalyzedAt)
		}
		return matches[i].AnalyzedAt.Before(matches[j].AnalyzedAt)
	})

	return matches, nil
}

func (s *MemoryRecordStore) expired(e *memEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.storedAt) > s.ttl
}

// cleanupLoop periodically removes expired records.
func (s *MemoryRecordStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

// cleanup removes expired records, oldest first.
func (s *MemoryRecordStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.tail != nil && s.expired(s.tail, now) {
		s.evictOldest()
	}
}

func (s *MemoryRecordStore) addToFront(entry *memEntry) {
	entry.prev = nil
	entry.next = s.head

	if s.head != nil {
		s.head.prev = entry
	}
	s.head = entry

	if s.tail == nil {
		s.tail = entry
	}
}

func (s *MemoryRecordStore) remove(entry *memEntry) {
	if entry.prev != nil {
		entry.prev.next = entry.next
	} else {
		s.head = entry.next
	}

	if entry.next != nil {
		entry.next.prev = entry.prev
	} else {
		s.tail = entry.prev
	}
}

func (s *MemoryRecordStore) evictOldest() {
	if s.tail == nil {
		return
	}
	delete(s.items, s.tail.rec.ID)
	s.remove(s.tail)
}

// computeStats aggregates records in memory.
func computeStats(recs []*scan.Record) *RecordStats {
	st := &RecordStats{
		TotalRecords: int64(len(recs)),
		ByFormat:     make(map[string]int64),
		ByEncoding:   make(map[string]int64),
	}

	entropies := make(stats.Float64Data, 0, len(recs))
	for _, rec := range recs {
		st.TotalBytes += rec.Size
		if len(rec.Analysis.HiddenCharacters) > 0 {
			st.WithHidden++
		}
		st.ByFormat[rec.FormatName()]++
		st.ByEncoding[string(rec.Analysis.Encoding)]++
		entropies = append(entropies, rec.Stats.Entropy)
	}

	if avg, err := stats.Mean(entropies); err == nil {
		st.AvgEntropy = avg
	}

	return st
}

var (
	_ RecordStore   = (*MemoryRecordStore)(nil)
	_ RecordQuerier = (*MemoryRecordStore)(nil)
)
