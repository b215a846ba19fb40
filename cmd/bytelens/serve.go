package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/bytelens/pkg/observability"
	"github.com/grokify/bytelens/pkg/server"
	"github.com/grokify/mogo/log/slogutil"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type serveOptions struct {
	root *rootOptions

	port int
	host string

	// Storage options
	db     string
	memory bool

	// Observability options
	metricsPort int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the analysis API server",
		Long: `Start an HTTP server that analyzes uploaded bytes.

Endpoints:
  POST /api/analyze?name=N          analyze the request body
  POST /api/inspect?offset=&length= per-byte details of the body
  POST /api/dump?offset=&length=&width=
                                    hex dump of the body
  GET  /api/records                 list stored records
  GET  /api/records/{id}            one stored record
  GET  /api/records/stats           aggregate statistics
  GET  /healthz, /readyz            health checks

Deployment Modes:
  Laptop:     bytelens serve --memory
  Team:       bytelens serve --db sqlite://bytelens.db --metrics-port 9090
  Production: bytelens serve --db postgres://... --metrics-port 9090

Examples:
  bytelens serve --port 9000
  curl --data-binary @image.png 'http://127.0.0.1:9000/api/analyze?name=image.png'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (default: server.port)")
	cmd.Flags().StringVar(&opts.host, "host", "", "Host to bind to (default: server.host)")
	cmd.Flags().StringVar(&opts.db, "db", "", "Database URL (sqlite://path or postgres://...)")
	cmd.Flags().BoolVar(&opts.memory, "memory", false, "Keep records in memory")
	cmd.Flags().IntVar(&opts.metricsPort, "metrics-port", 0, "Port for metrics/health endpoints (default: metrics.port when metrics.enabled)")

	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	ctx := cmd.Context()
	cfg := opts.root.settings()
	logger := slogutil.LoggerFromContext(ctx, slogutil.Null())

	metricsPort := opts.metricsPort
	if metricsPort == 0 && cfg.Metrics.Enabled {
		metricsPort = cfg.Metrics.Port
	}

	// Observability is always on for the API; /metrics is only exposed
	// when a metrics port is set.
	obs, err := observability.NewProvider(&observability.Config{
		ServiceName:       "bytelens",
		ServiceVersion:    version,
		EnablePrometheus:  metricsPort > 0,
		ProcessCollectors: true,
		SetGlobal:         true,
	})
	if err != nil {
		return fmt.Errorf("failed to setup observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			logger.Error("observability shutdown error", "error", err)
		}
	}()
	health := observability.NewHealthChecker()

	storage := serveStorage(cfg.Storage, opts)
	store, err := backend.Open(ctx, storage, observability.NewBackendMetrics(obs.Metrics))
	if err != nil {
		return err
	}
	defer closeStore(logger, store)

	if async, ok := store.(*backend.AsyncRecordStoreWrapper); ok {
		if err := obs.Metrics.RegisterQueueDepthCallback(func() int64 {
			return int64(async.QueueDepth())
		}); err != nil {
			logger.Warn("failed to register queue depth callback", "error", err)
		}
	}
	if p, ok := pinger(store); ok {
		health.RegisterCheck("storage", observability.PingCheck(p))
	}

	srvCfg := &server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		MaxUploadSize:   cfg.Server.MaxUploadSize,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DumpWidth:       cfg.Dump.Width,
		Version:         version,
	}
	if opts.host != "" {
		srvCfg.Host = opts.host
	}
	if opts.port > 0 {
		srvCfg.Port = opts.port
	}

	srv := server.New(srvCfg)
	srv.SetStore(store)
	srv.SetMetrics(obs.Metrics)
	srv.SetHealthChecker(health)
	srv.SetLogger(logger)

	fmt.Fprintf(cmd.OutOrStdout(), "ByteLens API on http://%s\n", srvCfg.Addr())
	fmt.Fprintf(cmd.OutOrStdout(), "Storing records in: %s\n", describeStorage(storage))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if metricsPort > 0 {
		addr := net.JoinHostPort("", strconv.Itoa(metricsPort))
		fmt.Fprintf(cmd.OutOrStdout(), "Metrics/health server on %s\n", addr)
		g.Go(func() error {
			return observability.ListenAndServe(gctx, addr, observability.NewHealthMux(health, obs))
		})
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// serveStorage picks the record store for the API. Writing uploads to
// stdout is of no use to a server, so a stdout file store becomes memory.
func serveStorage(base config.StorageConfig, opts *serveOptions) config.StorageConfig {
	storage := base
	switch {
	case opts.db != "":
		storage.Type = config.StorageDatabase
		storage.Database = opts.db
	case opts.memory:
		storage.Type = config.StorageMemory
	case storage.Type == config.StorageFile && storage.Output == "":
		storage.Type = config.StorageMemory
	}
	if storage.Type == config.StorageDatabase || storage.Type == config.StorageFile {
		storage.Async.Enabled = true
	}
	return storage
}

func describeStorage(s config.StorageConfig) string {
	switch s.Type {
	case config.StorageDatabase:
		if dbCfg, err := backend.ParseDatabaseURL(s.Database); err == nil {
			return dbCfg.String()
		}
		return "database"
	case config.StorageFile:
		return fmt.Sprintf("%s (%s)", s.Output, s.Format)
	case config.StorageMemory:
		return fmt.Sprintf("memory (last %d)", s.MemoryCapacity)
	default:
		return "nowhere"
	}
}

// pinger finds a store with a connection to health check.
func pinger(store backend.RecordStore) (observability.Pinger, bool) {
	if w, ok := store.(*backend.AsyncRecordStoreWrapper); ok {
		store = w.Unwrap()
	}
	p, ok := store.(observability.Pinger)
	return p, ok
}

func closeStore(logger *slog.Logger, store backend.RecordStore) {
	if async, ok := store.(backend.AsyncRecordStore); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := async.Flush(ctx); err != nil {
			logger.Error("failed to flush record queue", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("failed to close storage", "error", err)
	}
}
