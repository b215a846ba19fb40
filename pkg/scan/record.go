// Package scan turns files into analysis records, individually or by
// walking a directory tree with include/exclude filters.
package scan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/grokify/bytelens/pkg/analysis"
)

// DefaultMaxReadBytes is how much of a file is read for analysis (default: 10MB).
const DefaultMaxReadBytes int64 = 10 * 1024 * 1024

// Record represents one analyzed file or uploaded buffer.
type Record struct {
	// ID is assigned by the store that persisted the record (empty until stored)
	ID string `json:"id,omitempty"`
	// Path is the file path as given to the scanner, or the upload name
	Path string `json:"path"`
	// Name is the base name of Path
	Name string `json:"name"`
	// Size is the full file size; it exceeds Analysis.Size when Truncated
	Size int64 `json:"size"`
	// Truncated is true if only the first MaxReadBytes were analyzed
	Truncated bool `json:"truncated,omitempty"`
	// MIMEType and Extension are hints from the extended type database
	MIMEType  string `json:"mimeType"`
	Extension string `json:"extension,omitempty"`

	Analysis analysis.FileAnalysisResult `json:"analysis"`
	Stats    StatsSummary                `json:"stats"`
	Digests  analysis.Digests            `json:"digests"`

	AnalyzedAt time.Time `json:"analyzedAt"`
	DurationMs float64   `json:"durationMs"`
}

// StatsSummary is the part of analysis.ByteStats worth keeping per record.
type StatsSummary struct {
	Entropy        float64 `json:"entropy"`
	Mean           float64 `json:"mean"`
	StdDev         float64 `json:"stdDev"`
	PrintableRatio float64 `json:"printableRatio"`
}

// FormatName returns the matched signature name, or "" when none matched.
func (r *Record) FormatName() string {
	if r.Analysis.MatchedSignature == nil {
		return ""
	}
	return r.Analysis.MatchedSignature.FormatName
}

// NewRecord analyzes buf, which holds the first bytes of a file of size
// bytes located at path.
func NewRecord(path string, buf []byte, size int64) *Record {
	start := time.Now()

	st := analysis.ComputeStats(buf)
	mime, ext := analysis.SniffMIME(buf)

	rec := &Record{
		Path:      path,
		Name:      filepath.Base(path),
		Size:      size,
		Truncated: size > int64(len(buf)),
		MIMEType:  mime,
		Extension: ext,
		Analysis:  analysis.Analyze(buf),
		Stats: StatsSummary{
			Entropy:        st.Entropy,
			Mean:           st.Mean,
			StdDev:         st.StdDev,
			PrintableRatio: st.PrintableRatio,
		},
		Digests:    analysis.ComputeDigests(buf),
		AnalyzedAt: start.UTC(),
	}
	rec.DurationMs = float64(time.Since(start).Microseconds()) / 1000.0

	return rec
}

// ReadFile reads at most max bytes of path and returns them with the full
// file size. A max <= 0 uses DefaultMaxReadBytes.
func ReadFile(path string, max int64) ([]byte, int64, error) {
	if max <= 0 {
		max = DefaultMaxReadBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("%s is a directory", path)
	}

	data, err := io.ReadAll(io.LimitReader(f, max))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read file: %w", err)
	}

	return data, info.Size(), nil
}

// AnalyzeFile reads path (bounded by max) and builds its Record.
func AnalyzeFile(path string, max int64) (*Record, error) {
	data, size, err := ReadFile(path, max)
	if err != nil {
		return nil, err
	}
	return NewRecord(path, data, size), nil
}
