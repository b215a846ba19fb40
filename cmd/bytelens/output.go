package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/grokify/bytelens/pkg/analysis"
	"github.com/grokify/bytelens/pkg/backend"
	"github.com/grokify/bytelens/pkg/scan"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRecord writes the human-readable report for one analyzed file.
func printRecord(w io.Writer, rec *scan.Record) {
	fmt.Fprintf(w, "%s\n", rec.Path)

	size := humanize.Bytes(uint64(rec.Size))
	if rec.Truncated {
		size += fmt.Sprintf(" (first %s analyzed)", humanize.Bytes(uint64(rec.Analysis.Size)))
	}
	fmt.Fprintf(w, "  Size:      %s\n", size)

	if sig := rec.Analysis.MatchedSignature; sig != nil {
		fmt.Fprintf(w, "  Format:    %s (%s)\n", sig.FormatName, sig.Description)
	} else {
		fmt.Fprintf(w, "  Format:    unknown\n")
	}
	if rec.MIMEType != "" {
		fmt.Fprintf(w, "  MIME:      %s\n", rec.MIMEType)
	}

	enc := string(rec.Analysis.Encoding)
	if rec.Analysis.HasBOM {
		enc += ", BOM present"
	}
	fmt.Fprintf(w, "  Encoding:  %s\n", enc)
	fmt.Fprintf(w, "  Entropy:   %.3f bits/byte\n", rec.Stats.Entropy)
	fmt.Fprintf(w, "  SHA-256:   %s\n", rec.Digests.SHA256)

	switch rec.Analysis.TextStatus {
	case analysis.TextStatusNotText:
		fmt.Fprintf(w, "  Hidden:    not scanned (not decodable as text)\n")
	default:
		hits := rec.Analysis.HiddenCharacters
		if len(hits) == 0 {
			fmt.Fprintf(w, "  Hidden:    none\n")
			break
		}
		fmt.Fprintf(w, "  Hidden:    %d found\n", len(hits))
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, hit := range hits {
			fmt.Fprintf(tw, "    pos %d\tU+%04X\t%s\n", hit.Position, hit.Codepoint, hit.Name)
		}
		tw.Flush()
	}
}

// printByteTable writes one row per byte.
func printByteTable(w io.Writer, details []analysis.ByteDetail) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OFFSET\tHEX\tDEC\tOCT\tBINARY\tASCII")
	for _, d := range details {
		fmt.Fprintf(tw, "%08X\t%s\t%s\t%s\t%s\t%s\n", d.Offset, d.Hex, d.Decimal, d.Octal, d.Binary, d.ASCII)
	}
	return tw.Flush()
}

// printSummaries writes stored records as a table.
func printSummaries(w io.Writer, recs []*backend.RecordSummary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tFORMAT\tENCODING\tHIDDEN\tANALYZED")
	for _, r := range recs {
		format := r.Format
		if format == "" {
			format = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.Name, humanize.Bytes(uint64(r.Size)), format, r.Encoding,
			r.HiddenCount, humanize.Time(r.AnalyzedAt))
	}
	return tw.Flush()
}

// printStats writes aggregate statistics.
func printStats(w io.Writer, stats *backend.RecordStats) {
	fmt.Fprintf(w, "Records:      %s\n", humanize.Comma(stats.TotalRecords))
	fmt.Fprintf(w, "Bytes:        %s\n", humanize.Bytes(uint64(stats.TotalBytes)))
	fmt.Fprintf(w, "With hidden:  %s\n", humanize.Comma(stats.WithHidden))
	fmt.Fprintf(w, "Avg entropy:  %.3f\n", stats.AvgEntropy)
	printCounts(w, "Formats", stats.ByFormat)
	printCounts(w, "Encodings", stats.ByEncoding)
}

func printCounts(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		name := k
		if strings.TrimSpace(name) == "" {
			name = "(none)"
		}
		fmt.Fprintf(w, "  %-22s %s\n", name, humanize.Comma(counts[k]))
	}
}
