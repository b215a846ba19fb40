package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/bytelens/pkg/scan"
	"github.com/grokify/bytelens/pkg/server"
	"github.com/grokify/mogo/log/slogutil"
	"github.com/spf13/cobra"
)

type recordsOptions struct {
	root   *rootOptions
	db     string
	server string
	json   bool
}

// recordSource is a database or a running server.
type recordSource interface {
	ListRecords(ctx context.Context, filter *backend.RecordFilter) (*server.RecordsResponse, error)
	GetRecord(ctx context.Context, id string) (*scan.Record, error)
	Stats(ctx context.Context, filter *backend.RecordFilter) (*backend.RecordStats, error)
}

func newRecordsCmd(root *rootOptions) *cobra.Command {
	opts := &recordsOptions{root: root}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "Query stored analysis records",
		Long: `Query records saved by "scan --db", "analyze --store" or "serve".

Records are read from --db, from a running server with --server, or from
storage.database in the config file.`,
	}

	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "Database URL (sqlite://path or postgres://...)")
	cmd.PersistentFlags().StringVar(&opts.server, "server", "", "URL of a running bytelens server")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON")

	cmd.AddCommand(
		newRecordsListCmd(opts),
		newRecordsShowCmd(opts),
		newRecordsStatsCmd(opts),
	)

	return cmd
}

type recordsListOptions struct {
	formats   []string
	encodings []string
	hidden    bool
	name      string
	since     time.Duration
	limit     int
	offset    int
	asc       bool
}

func (o *recordsListOptions) filter() *backend.RecordFilter {
	f := &backend.RecordFilter{
		Formats:     o.formats,
		Encodings:   o.encodings,
		HiddenOnly:  o.hidden,
		NamePattern: o.name,
		Limit:       o.limit,
		Offset:      o.offset,
		Desc:        !o.asc,
	}
	if o.since > 0 {
		f.StartTime = time.Now().Add(-o.since)
	}
	return f
}

func addFilterFlags(cmd *cobra.Command, o *recordsListOptions) {
	cmd.Flags().StringSliceVar(&o.formats, "format", nil, "Only these formats (e.g. PNG, PDF)")
	cmd.Flags().StringSliceVar(&o.encodings, "encoding", nil, "Only these encodings (e.g. Binary)")
	cmd.Flags().BoolVar(&o.hidden, "hidden", false, "Only records with hidden characters")
	cmd.Flags().StringVar(&o.name, "name", "", "File name pattern (supports * and ?)")
	cmd.Flags().DurationVar(&o.since, "since", 0, "Only records analyzed within this duration (e.g. 24h)")
}

func newRecordsListCmd(opts *recordsOptions) *cobra.Command {
	lopts := &recordsListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Example: `  bytelens records list --db sqlite://bytelens.db --hidden
  bytelens records list --server http://127.0.0.1:8080 --format PDF --limit 20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecordSource(cmd, opts, func(ctx context.Context, src recordSource) error {
				resp, err := src.ListRecords(ctx, lopts.filter())
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), resp)
				}
				if err := printSummaries(cmd.OutOrStdout(), resp.Records); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d records\n", len(resp.Records), resp.Total)
				return nil
			})
		},
	}

	addFilterFlags(cmd, lopts)
	cmd.Flags().IntVarP(&lopts.limit, "limit", "n", server.DefaultListLimit, "Maximum records to list")
	cmd.Flags().IntVar(&lopts.offset, "offset", 0, "Records to skip")
	cmd.Flags().BoolVar(&lopts.asc, "asc", false, "Oldest first")

	return cmd
}

func newRecordsShowCmd(opts *recordsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecordSource(cmd, opts, func(ctx context.Context, src recordSource) error {
				rec, err := src.GetRecord(ctx, args[0])
				if errors.Is(err, backend.ErrNotFound) {
					return fmt.Errorf("record %s not found", args[0])
				} else if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ID:        %s\nAnalyzed:  %s\n", rec.ID, rec.AnalyzedAt.Local().Format(time.RFC3339))
				printRecord(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}
}

func newRecordsStatsCmd(opts *recordsOptions) *cobra.Command {
	lopts := &recordsListOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecordSource(cmd, opts, func(ctx context.Context, src recordSource) error {
				f := lopts.filter()
				f.Limit = 0
				stats, err := src.Stats(ctx, f)
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	addFilterFlags(cmd, lopts)

	return cmd
}

// withRecordSource opens the record source selected by the flags and
// closes it after fn returns.
func withRecordSource(cmd *cobra.Command, opts *recordsOptions, fn func(context.Context, recordSource) error) error {
	ctx := cmd.Context()

	if opts.server != "" {
		return fn(ctx, server.NewClient(opts.server))
	}

	cfg := opts.root.settings()
	dbURL := opts.db
	if dbURL == "" && cfg.Storage.Type == config.StorageDatabase {
		dbURL = cfg.Storage.Database
	}
	if dbURL == "" {
		return errors.New("no record source: use --db, --server or set storage.database in the config file")
	}

	store, err := backend.NewDatabaseRecordStore(ctx, &backend.DatabaseRecordStoreConfig{
		DatabaseURL: dbURL,
		Debug:       cfg.Storage.Debug,
		Logger:      slogutil.LoggerFromContext(ctx, slogutil.Null()),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	return fn(ctx, querierSource{store})
}

// querierSource reads records directly from a store.
type querierSource struct {
	q backend.RecordQuerier
}

func (s querierSource) ListRecords(ctx context.Context, filter *backend.RecordFilter) (*server.RecordsResponse, error) {
	recs, err := s.q.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	countFilter := *filter
	countFilter.Limit = 0
	countFilter.Offset = 0
	total, err := s.q.Count(ctx, &countFilter)
	if err != nil {
		return nil, err
	}

	return &server.RecordsResponse{
		Records: recs,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (s querierSource) GetRecord(ctx context.Context, id string) (*scan.Record, error) {
	return s.q.GetByID(ctx, id)
}

func (s querierSource) Stats(ctx context.Context, filter *backend.RecordFilter) (*backend.RecordStats, error) {
	return s.q.Stats(ctx, filter)
}
