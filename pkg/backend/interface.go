// Package backend provides pluggable storage for analysis records.
//
// ByteLens supports three storage modes:
//
//   - File: NDJSON or JSON written to a file or stdout
//   - Memory: bounded in-process store, queryable (server default)
//   - Database: SQLite or PostgreSQL, queryable
//
// Any store can be wrapped with an async buffered writer. The same binary
// works in all modes - just configure which backend to use.
package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/grokify/bytelens/pkg/scan"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNotFound is returned by GetByID when no record has the given ID.
	ErrNotFound = errors.New("record not found")
)

// RecordStore is the interface for storing analysis records.
// Implementations must be safe for concurrent use.
type RecordStore interface {
	// Store saves a single record. A record without an ID is assigned one.
	Store(ctx context.Context, rec *scan.Record) error

	// StoreBatch saves multiple records efficiently.
	StoreBatch(ctx context.Context, recs []*scan.Record) error

	// Close releases any resources held by the store.
	Close() error
}

// RecordQuerier is an optional interface for querying stored records.
// Not all RecordStore implementations support querying (e.g., file output).
type RecordQuerier interface {
	// Query returns summaries of records matching the filter.
	Query(ctx context.Context, filter *RecordFilter) ([]*RecordSummary, error)

	// GetByID returns the full record. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*scan.Record, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter *RecordFilter) (int64, error)

	// Stats returns aggregate statistics.
	Stats(ctx context.Context, filter *RecordFilter) (*RecordStats, error)
}

// RecordFilter specifies criteria for querying records.
type RecordFilter struct {
	// Time range (on AnalyzedAt)
	StartTime time.Time
	EndTime   time.Time

	Formats     []string // Matched signature names, "" for none
	Encodings   []string // Encoding verdicts, e.g. "ASCII/UTF-8"
	HiddenOnly  bool     // Only records with hidden characters
	NamePattern string   // Base name pattern (supports * and ? wildcards)

	// Pagination
	Limit  int
	Offset int

	// Sorting by AnalyzedAt; Desc returns newest first
	Desc bool
}

// RecordSummary represents a stored record for querying (list view).
type RecordSummary struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	Format      string    `json:"format,omitempty"`
	Encoding    string    `json:"encoding"`
	MIMEType    string    `json:"mimeType"`
	HiddenCount int       `json:"hiddenCount"`
	Entropy     float64   `json:"entropy"`
	AnalyzedAt  time.Time `json:"analyzedAt"`
}

// RecordStats contains aggregate record statistics.
type RecordStats struct {
	TotalRecords int64            `json:"totalRecords"`
	TotalBytes   int64            `json:"totalBytes"`
	WithHidden   int64            `json:"withHidden"`
	AvgEntropy   float64          `json:"avgEntropy"`
	ByFormat     map[string]int64 `json:"byFormat"`
	ByEncoding   map[string]int64 `json:"byEncoding"`
}

// AsyncRecordStore wraps a RecordStore with async buffered writes.
// This is used by bulk scans so walking is not blocked on storage.
type AsyncRecordStore interface {
	RecordStore

	// QueueDepth returns the current number of records waiting to be stored.
	QueueDepth() int

	// Flush blocks until all queued records are stored.
	Flush(ctx context.Context) error
}

// Metrics provides observability for backend operations.
type Metrics interface {
	// IncStoreSuccess increments successful store counter.
	IncStoreSuccess()

	// IncStoreError increments store error counter.
	IncStoreError()

	// ObserveStoreDuration records store operation duration.
	ObserveStoreDuration(d time.Duration)

	// IncCacheHit increments lookup hit counter.
	IncCacheHit()

	// IncCacheMiss increments lookup miss counter.
	IncCacheMiss()

	// SetQueueDepth sets the current queue depth gauge.
	SetQueueDepth(n int)
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) IncStoreSuccess()                   {}
func (NoopMetrics) IncStoreError()                     {}
func (NoopMetrics) ObserveStoreDuration(time.Duration) {}
func (NoopMetrics) IncCacheHit()                       {}
func (NoopMetrics) IncCacheMiss()                      {}
func (NoopMetrics) SetQueueDepth(int)                  {}

// NewID returns a new record ID.
func NewID() string {
	return uuid.NewString()
}

// ensureID assigns an ID to rec if it has none.
func ensureID(rec *scan.Record) {
	if rec.ID == "" {
		rec.ID = NewID()
	}
}

// Summarize builds the list view of a record.
func Summarize(rec *scan.Record) *RecordSummary {
	return &RecordSummary{
		ID:          rec.ID,
		Path:        rec.Path,
		Name:        rec.Name,
		Size:        rec.Size,
		Format:      rec.FormatName(),
		Encoding:    string(rec.Analysis.Encoding),
		MIMEType:    rec.MIMEType,
		HiddenCount: len(rec.Analysis.HiddenCharacters),
		Entropy:     rec.Stats.Entropy,
		AnalyzedAt:  rec.AnalyzedAt,
	}
}

// Match reports whether rec satisfies the filter (pagination is ignored).
func (f *RecordFilter) Match(rec *scan.Record) bool {
	if f == nil {
		return true
	}
	if !f.StartTime.IsZero() && rec.AnalyzedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && rec.AnalyzedAt.After(f.EndTime) {
		return false
	}
	if len(f.Formats) > 0 && !containsString(f.Formats, rec.FormatName()) {
		return false
	}
	if len(f.Encodings) > 0 && !containsString(f.Encodings, string(rec.Analysis.Encoding)) {
		return false
	}
	if f.HiddenOnly && len(rec.Analysis.HiddenCharacters) == 0 {
		return false
	}
	if f.NamePattern != "" && !scan.MatchPattern(f.NamePattern, rec.Name) {
		return false
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
