package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/scan"
	"github.com/grokify/bytelens/pkg/server"
	"github.com/grokify/mogo/log/slogutil"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	root     *rootOptions
	json     bool
	store    bool
	server   string
	maxBytes int64
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{root: root}

	cmd := &cobra.Command{
		Use:   "analyze <file>...",
		Short: "Analyze files",
		Long: `Identify the format, encoding and hidden characters of each file.

Use "-" to read from standard input.

Examples:
  # Analyze a file
  bytelens analyze report.pdf

  # JSON output for several files
  bytelens analyze --json *.txt

  # Save results to the configured storage backend
  bytelens analyze --store notes.md

  # Let a running server analyze and store the file
  bytelens analyze --server http://127.0.0.1:8080 notes.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.json, "json", false, "Print records as JSON")
	cmd.Flags().BoolVar(&opts.store, "store", false, "Save records to the configured storage")
	cmd.Flags().StringVar(&opts.server, "server", "", "Analyze via a running bytelens server at this URL")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-bytes", 0, "Bytes analyzed per file (default: scan.maxReadBytes)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions, args []string) error {
	ctx := cmd.Context()
	cfg := opts.root.settings()
	logger := slogutil.LoggerFromContext(ctx, slogutil.Null())
	out := cmd.OutOrStdout()

	maxBytes := opts.maxBytes
	if maxBytes <= 0 {
		maxBytes = cfg.Scan.MaxReadBytes
	}

	var store backend.RecordStore
	if opts.store && opts.server == "" {
		s, err := backend.Open(ctx, cfg.Storage, nil)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
	}

	var client *server.Client
	if opts.server != "" {
		client = server.NewClient(opts.server)
	}

	var failed int
	for i, path := range args {
		data, size, err := readInput(cmd.InOrStdin(), path, maxBytes)
		if err != nil {
			logger.Error("failed to read input", "path", path, "error", err)
			failed++
			continue
		}

		var rec *scan.Record
		if client != nil {
			rec, err = client.Analyze(ctx, path, data)
			if err != nil {
				return err
			}
			rec.Path = path
		} else {
			rec = scan.NewRecord(path, data, size)
		}

		if store != nil {
			if err := store.Store(ctx, rec); err != nil {
				return fmt.Errorf("failed to store record: %w", err)
			}
			logger.Debug("record stored", "path", path, "id", rec.ID)
		}

		if opts.json {
			if err := writeJSON(out, rec); err != nil {
				return err
			}
			continue
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		printRecord(out, rec)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d inputs could not be read", failed, len(args))
	}
	return nil
}

// readInput reads path, or stdin when path is "-".
func readInput(stdin io.Reader, path string, max int64) ([]byte, int64, error) {
	if path != "-" {
		return scan.ReadFile(path, max)
	}
	if max <= 0 {
		max = scan.DefaultMaxReadBytes
	}

	data, err := io.ReadAll(io.LimitReader(stdin, max+1))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read stdin: %w", err)
	}
	size := int64(len(data))
	if size > max {
		data = data[:max]
	}
	return data, size, nil
}

// readRange reads length bytes of path starting at offset. A negative
// length reads to the end, bounded by max.
func readRange(path string, offset int64, length int, max int64) ([]byte, error) {
	if offset < 0 {
		return nil, errors.New("offset must not be negative")
	}
	if max <= 0 {
		max = scan.DefaultMaxReadBytes
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek: %w", err)
	}

	n := max
	if length >= 0 && int64(length) < n {
		n = int64(length)
	}
	data, err := io.ReadAll(io.LimitReader(f, n))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
