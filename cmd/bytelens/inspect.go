package main

import (
	"fmt"
	"strconv"

	"github.com/grokify/bytelens/pkg/analysis"
	"github.com/spf13/cobra"
)

type inspectOptions struct {
	root   *rootOptions
	offset string
	length int
	json   bool
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	opts := &inspectOptions{root: root}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show bytes in every base",
		Long: `Show the hex, decimal, octal, binary and ASCII form of bytes in a file.

Offsets accept decimal or 0x-prefixed hex.

Examples:
  bytelens inspect image.png --length 8
  bytelens inspect data.bin --offset 0x200 --length 4 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.offset, "offset", "0", "Offset of the first byte")
	cmd.Flags().IntVarP(&opts.length, "length", "n", 16, "Number of bytes")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print bytes as JSON")

	return cmd
}

func runInspect(cmd *cobra.Command, opts *inspectOptions, path string) error {
	offset, err := parseOffset(opts.offset)
	if err != nil {
		return err
	}
	if opts.length < 0 {
		return fmt.Errorf("length must not be negative")
	}

	data, err := readRange(path, offset, opts.length, opts.root.settings().Scan.MaxReadBytes)
	if err != nil {
		return err
	}

	details := make([]analysis.ByteDetail, len(data))
	for i, b := range data {
		details[i] = analysis.InspectByte(offset+int64(i), int(b))
	}

	if opts.json {
		return writeJSON(cmd.OutOrStdout(), details)
	}
	if len(details) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no bytes at offset %d\n", offset)
		return nil
	}
	return printByteTable(cmd.OutOrStdout(), details)
}

func parseOffset(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	return n, nil
}
