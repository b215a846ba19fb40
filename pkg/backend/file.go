package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grokify/bytelens/pkg/scan"
)

// Format is the encoding used by FileRecordStore.
type Format string

const (
	// FormatNDJSON writes one compact record per line.
	FormatNDJSON Format = "ndjson"
	// FormatJSON writes indented records, for reading by eye.
	FormatJSON Format = "json"
)

// ParseFormat accepts "ndjson" (or "jsonl") and "json". The empty string
// means ndjson.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ndjson", "jsonl":
		return FormatNDJSON, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (use ndjson or json)", s)
}

// FileRecordStoreConfig configures a FileRecordStore.
type FileRecordStoreConfig struct {
	// Path is appended to, creating parent directories as needed. Empty
	// means stdout.
	Path string

	// Writer, when set, is used instead of Path.
	Writer io.Writer

	Format  Format
	Metrics Metrics
}

// FileRecordStore appends records to a file, stdout or any writer. Output
// is buffered and flushed after every Store or StoreBatch call.
type FileRecordStore struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *json.Encoder
	closer  io.Closer
	metrics Metrics
	closed  bool
}

func NewFileRecordStore(cfg *FileRecordStoreConfig) (*FileRecordStore, error) {
	if cfg == nil {
		cfg = &FileRecordStoreConfig{}
	}

	format, err := ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}

	s := &FileRecordStore{metrics: cfg.Metrics}
	if s.metrics == nil {
		s.metrics = NoopMetrics{}
	}

	var w io.Writer
	switch {
	case cfg.Writer != nil:
		w = cfg.Writer
	case cfg.Path != "":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		w, s.closer = f, f
	default:
		w = os.Stdout
	}

	s.buf = bufio.NewWriter(w)
	s.enc = json.NewEncoder(s.buf)
	s.enc.SetEscapeHTML(false)
	if format == FormatJSON {
		s.enc.SetIndent("", "  ")
	}
	return s, nil
}

func (s *FileRecordStore) Store(ctx context.Context, rec *scan.Record) error {
	return s.StoreBatch(ctx, []*scan.Record{rec})
}

// StoreBatch encodes recs in order and flushes once at the end.
func (s *FileRecordStore) StoreBatch(ctx context.Context, recs []*scan.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, rec := range recs {
		if rec == nil {
			continue
		}
		start := time.Now()
		ensureID(rec)
		if err := s.enc.Encode(rec); err != nil {
			s.metrics.IncStoreError()
			return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
		}
		s.metrics.ObserveStoreDuration(time.Since(start))
		s.metrics.IncStoreSuccess()
	}

	if err := s.buf.Flush(); err != nil {
		s.metrics.IncStoreError()
		return err
	}
	return nil
}

// Close flushes buffered output and closes the file, if one was opened.
func (s *FileRecordStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.buf.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Handle lets the store be registered directly as a scan handler.
func (s *FileRecordStore) Handle(rec *scan.Record) {
	_ = s.Store(context.Background(), rec)
}

var _ RecordStore = (*FileRecordStore)(nil)
