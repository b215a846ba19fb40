package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/bytelens/pkg/scan"
	"github.com/grokify/mogo/log/slogutil"
	"github.com/spf13/cobra"
)

type scanOptions struct {
	root        *rootOptions
	include     []string
	exclude     []string
	excludeDirs []string
	minSize     string
	maxSize     string
	maxBytes    string
	workers     int
	output      string
	format      string
	db          string
	json        bool
}

func newScanCmd(root *rootOptions) *cobra.Command {
	opts := &scanOptions{root: root}

	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Analyze every file under a directory",
		Long: `Walk a directory tree and analyze each matching file.

Patterns match the file name or the path relative to <dir> and support
* and ? wildcards. Sizes accept units such as 512, 64KB or 10MiB.

Storage:
  Summary only:  bytelens scan ./docs
  File:          bytelens scan ./docs --output records.ndjson
  Stdout:        bytelens scan ./docs --output -
  Database:      bytelens scan ./docs --db sqlite://bytelens.db

Examples:
  # Only text files, skipping vendored code
  bytelens scan . --include "*.txt" --include "*.md" --exclude-dir vendor

  # Large files only, 8 at a time
  bytelens scan /data --min-size 1MB --workers 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Only analyze files matching these patterns")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Skip files matching these patterns")
	cmd.Flags().StringSliceVar(&opts.excludeDirs, "exclude-dir", nil, "Skip directories with these names (added to scan.excludeDirs)")
	cmd.Flags().StringVar(&opts.minSize, "min-size", "", "Minimum file size")
	cmd.Flags().StringVar(&opts.maxSize, "max-size", "", "Maximum file size")
	cmd.Flags().StringVar(&opts.maxBytes, "max-bytes", "", "Bytes analyzed per file (default: scan.maxReadBytes)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Files analyzed concurrently (default: scan.workers or CPU count)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write records to this file (- for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "Output format: ndjson, json (default: storage.format)")
	cmd.Flags().StringVar(&opts.db, "db", "", "Database URL (sqlite://path or postgres://...)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the summary as JSON")

	return cmd
}

// hiddenFile is a scanned file that contains hidden characters.
type hiddenFile struct {
	path  string
	count int
}

func runScan(cmd *cobra.Command, opts *scanOptions, dir string) error {
	ctx := cmd.Context()
	cfg := opts.root.settings()
	logger := slogutil.LoggerFromContext(ctx, slogutil.Null())

	filter := &scan.Filter{
		Include:     cfg.Scan.Include,
		Exclude:     cfg.Scan.Exclude,
		ExcludeDirs: append(append([]string{}, cfg.Scan.ExcludeDirs...), opts.excludeDirs...),
		MinSize:     cfg.Scan.MinSize,
		MaxSize:     cfg.Scan.MaxSize,
	}
	if len(opts.include) > 0 {
		filter.Include = opts.include
	}
	if len(opts.exclude) > 0 {
		filter.Exclude = opts.exclude
	}

	var err error
	if filter.MinSize, err = parseSize(opts.minSize, filter.MinSize); err != nil {
		return fmt.Errorf("invalid --min-size: %w", err)
	}
	if filter.MaxSize, err = parseSize(opts.maxSize, filter.MaxSize); err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	maxBytes, err := parseSize(opts.maxBytes, cfg.Scan.MaxReadBytes)
	if err != nil {
		return fmt.Errorf("invalid --max-bytes: %w", err)
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Scan.Workers
	}

	scanner, err := scan.NewScanner(&scan.Config{
		Root:         dir,
		Filter:       filter,
		MaxReadBytes: maxBytes,
		Workers:      workers,
	})
	if err != nil {
		return err
	}

	storage := scanStorage(cfg.Storage, opts)
	store, err := backend.Open(ctx, storage, nil)
	if err != nil {
		return err
	}
	logger.Debug("scan storage", "type", storage.Type, "async", storage.Async.Enabled)

	var (
		mu     sync.Mutex
		hidden []hiddenFile
	)
	scanner.AddHandler(func(rec *scan.Record) {
		if err := store.Store(ctx, rec); err != nil {
			logger.Error("failed to store record", "path", rec.Path, "error", err)
		}
		if n := len(rec.Analysis.HiddenCharacters); n > 0 {
			mu.Lock()
			hidden = append(hidden, hiddenFile{path: rec.Path, count: n})
			mu.Unlock()
		}
	})

	summary, scanErr := scanner.Scan(ctx)

	closeStore(logger, store)

	if scanErr != nil {
		return scanErr
	}

	out := cmd.OutOrStdout()
	if opts.output == "-" {
		out = cmd.ErrOrStderr()
	}
	if opts.json {
		return writeJSON(out, summary)
	}
	printScanSummary(out, summary, hidden)
	return nil
}

// scanStorage applies the scan flags to the configured storage. A file
// store aimed at stdout is turned off unless --output - asks for it, so
// records do not interleave with the summary. Scans wait for the write
// queue rather than drop records.
func scanStorage(base config.StorageConfig, opts *scanOptions) config.StorageConfig {
	storage := base
	switch {
	case opts.db != "":
		storage.Type = config.StorageDatabase
		storage.Database = opts.db
	case opts.output == "-":
		storage.Type = config.StorageFile
		storage.Output = ""
	case opts.output != "":
		storage.Type = config.StorageFile
		storage.Output = opts.output
	case storage.Type == config.StorageFile && storage.Output == "":
		storage.Type = config.StorageNone
	}
	if opts.format != "" {
		storage.Format = opts.format
	}
	if storage.Type != config.StorageNone {
		storage.Async.Enabled = true
		storage.Async.Block = true
	}
	return storage
}

func parseSize(s string, def int64) (int64, error) {
	if s == "" {
		return def, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

func printScanSummary(w io.Writer, s *scan.Summary, hidden []hiddenFile) {
	fmt.Fprintf(w, "Scanned %s in %s\n", s.Root, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Files seen:     %s\n", humanize.Comma(int64(s.Seen)))
	fmt.Fprintf(w, "  Analyzed:       %s (%s)\n", humanize.Comma(int64(s.Analyzed)), humanize.Bytes(uint64(s.Bytes)))
	fmt.Fprintf(w, "  Skipped:        %s\n", humanize.Comma(int64(s.Skipped)))
	if s.Errors > 0 {
		fmt.Fprintf(w, "  Errors:         %s\n", humanize.Comma(int64(s.Errors)))
	}
	fmt.Fprintf(w, "  Hidden chars:   %d files\n", s.WithHidden)

	if len(s.Formats) > 0 {
		formats := make([]string, 0, len(s.Formats))
		for name := range s.Formats {
			formats = append(formats, name)
		}
		sort.Slice(formats, func(i, j int) bool {
			if s.Formats[formats[i]] != s.Formats[formats[j]] {
				return s.Formats[formats[i]] > s.Formats[formats[j]]
			}
			return formats[i] < formats[j]
		})
		fmt.Fprintln(w, "  Formats:")
		for _, name := range formats {
			fmt.Fprintf(w, "    %-20s %d\n", name, s.Formats[name])
		}
	}

	if len(hidden) > 0 {
		sort.Slice(hidden, func(i, j int) bool { return hidden[i].path < hidden[j].path })
		fmt.Fprintln(w, "Files with hidden characters:")
		for _, h := range hidden {
			fmt.Fprintf(w, "  %s (%d)\n", h.path, h.count)
		}
	}
}
