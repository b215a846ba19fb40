package scan

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/grokify/mogo/log/slogutil"
	"golang.org/x/sync/errgroup"
)

// Handler is called for each analyzed file. Handlers run on worker
// goroutines and must be safe for concurrent use.
type Handler func(*Record)

// Config holds scanner configuration.
type Config struct {
	// Root is the directory to walk
	Root string
	// Filter selects files (optional; nil matches everything)
	Filter *Filter
	// MaxReadBytes is the number of bytes analyzed per file (default: 10MB)
	MaxReadBytes int64
	// Workers is the number of files analyzed concurrently (default: NumCPU)
	Workers int
}

// Summary describes a finished scan.
type Summary struct {
	Root       string         `json:"root"`
	Seen       int            `json:"seen"`
	Analyzed   int            `json:"analyzed"`
	Skipped    int            `json:"skipped"`
	Errors     int            `json:"errors"`
	Bytes      int64          `json:"bytes"`
	WithHidden int            `json:"withHidden"`
	Formats    map[string]int `json:"formats"`
	Duration   time.Duration  `json:"duration"`
}

// Scanner walks a directory tree and analyzes matching files.
type Scanner struct {
	config   *Config
	mu       sync.Mutex
	handlers []Handler
}

// NewScanner creates a new scanner. The filter is compiled here.
func NewScanner(cfg *Config) (*Scanner, error) {
	if cfg == nil || cfg.Root == "" {
		return nil, fmt.Errorf("scan root is required")
	}
	if cfg.Filter == nil {
		cfg.Filter = NewFilter()
	}
	if err := cfg.Filter.Compile(); err != nil {
		return nil, fmt.Errorf("invalid filter pattern: %w", err)
	}
	if cfg.MaxReadBytes <= 0 {
		cfg.MaxReadBytes = DefaultMaxReadBytes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Scanner{config: cfg}, nil
}

// AddHandler adds a handler to be called for each analyzed file.
func (s *Scanner) AddHandler(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Scan walks the root directory. Files that cannot be read are logged and
// counted in Summary.Errors; only a failure on the root or a cancelled
// context aborts the scan.
func (s *Scanner) Scan(ctx context.Context) (*Summary, error) {
	logger := slogutil.LoggerFromContext(ctx, slogutil.Null())
	start := time.Now()
	root := s.config.Root

	summary := &Summary{Root: root, Formats: make(map[string]int)}
	var mu sync.Mutex

	s.mu.Lock()
	handlers := append([]Handler(nil), s.handlers...)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := gctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			mu.Lock()
			summary.Errors++
			mu.Unlock()
			return nil
		}

		if d.IsDir() {
			if path != root && s.config.Filter.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("failed to stat file", "path", path, "error", err)
			mu.Lock()
			summary.Errors++
			mu.Unlock()
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}

		mu.Lock()
		summary.Seen++
		mu.Unlock()

		if !s.config.Filter.Match(rel, info.Size()) {
			mu.Lock()
			summary.Skipped++
			mu.Unlock()
			return nil
		}

		g.Go(func() error {
			rec, err := AnalyzeFile(path, s.config.MaxReadBytes)
			if err != nil {
				logger.Warn("failed to analyze file", "path", path, "error", err)
				mu.Lock()
				summary.Errors++
				mu.Unlock()
				return nil
			}

			logger.Debug("analyzed file",
				"path", path,
				"format", rec.FormatName(),
				"encoding", rec.Analysis.Encoding,
				"hidden", len(rec.Analysis.HiddenCharacters))

			mu.Lock()
			summary.Analyzed++
			summary.Bytes += int64(rec.Analysis.Size)
			if len(rec.Analysis.HiddenCharacters) > 0 {
				summary.WithHidden++
			}
			if name := rec.FormatName(); name != "" {
				summary.Formats[name]++
			}
			mu.Unlock()

			for _, h := range handlers {
				h(rec)
			}
			return nil
		})
		return nil
	})

	groupErr := g.Wait()
	summary.Duration = time.Since(start)

	if walkErr != nil {
		return summary, fmt.Errorf("scan of %s failed: %w", root, walkErr)
	}
	if groupErr != nil {
		return summary, groupErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}
