// ByteLens identifies file formats, encodings and hidden characters from raw bytes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/mogo/log/slogutil"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type rootOptions struct {
	configPath string
	verbose    bool

	cfg *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "bytelens",
		Short: "Byte-level file analysis",
		Long: `ByteLens examines the raw bytes of files.

It reports:
  - File format from magic-number signatures
  - Byte-order marks and a text/binary encoding verdict
  - Hidden and invisible Unicode characters with their positions
  - Per-byte hex, octal, decimal, binary and ASCII views
  - Entropy, digests and hex dumps`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: ~/.bytelens/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newInspectCmd(opts),
		newDumpCmd(opts),
		newScanCmd(opts),
		newServeCmd(opts),
		newRecordsCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// load reads the config file and installs the logger on the command context.
func (o *rootOptions) load(cmd *cobra.Command) error {
	path := o.configPath
	explicit := path != ""
	if !explicit {
		path = config.DefaultConfigPath()
	}

	var (
		cfg *config.Config
		err error
	)
	if explicit {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault(path)
	}
	if err != nil {
		return err
	}
	o.cfg = cfg

	level := slog.LevelInfo
	if o.verbose || cfg.Server.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger.Debug("configuration loaded", "path", path, "explicit", explicit)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(slogutil.ContextWithLogger(ctx, logger))
	return nil
}

// settings returns the loaded configuration. It is only valid inside RunE.
func (o *rootOptions) settings() *config.Config {
	if o.cfg == nil {
		o.cfg = config.DefaultConfig()
	}
	return o.cfg
}
