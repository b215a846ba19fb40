package main

import (
	"fmt"

	"github.com/grokify/bytelens/pkg/analysis"
	"github.com/spf13/cobra"
)

type dumpOptions struct {
	root   *rootOptions
	offset string
	length int
	width  int
	json   bool
}

func newDumpCmd(root *rootOptions) *cobra.Command {
	opts := &dumpOptions{root: root}

	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print a hex dump",
		Long: `Print a hex dump with offsets and an ASCII column.

Defaults for --length and --width come from the dump section of the config
file. A length of 0 dumps up to scan.maxReadBytes.

Examples:
  bytelens dump image.png
  bytelens dump data.bin --offset 0x100 --length 64 --width 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.offset, "offset", "0", "Offset to start at")
	cmd.Flags().IntVarP(&opts.length, "length", "n", -1, "Number of bytes (default: dump.length)")
	cmd.Flags().IntVarP(&opts.width, "width", "w", 0, "Bytes per row (default: dump.width)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print rows as JSON")

	return cmd
}

func runDump(cmd *cobra.Command, opts *dumpOptions, path string) error {
	cfg := opts.root.settings()

	offset, err := parseOffset(opts.offset)
	if err != nil {
		return err
	}

	length := opts.length
	if length < 0 {
		length = cfg.Dump.Length
	}
	if length == 0 {
		length = -1
	}

	width := opts.width
	if width <= 0 {
		width = cfg.Dump.Width
	}
	if width <= 0 {
		width = analysis.DefaultDumpWidth
	}

	data, err := readRange(path, offset, length, cfg.Scan.MaxReadBytes)
	if err != nil {
		return err
	}

	rows := analysis.Dump(data, offset, width)
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), rows)
	}
	if len(rows) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no bytes at offset %d\n", offset)
		return nil
	}
	return analysis.WriteDump(cmd.OutOrStdout(), rows, width)
}
