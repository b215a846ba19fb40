package analysis

import (
	"fmt"
	"io"
	"strings"
)

// DefaultDumpWidth is the number of bytes per hex dump row.
const DefaultDumpWidth = 16

// DumpRow is one line of a hex dump.
type DumpRow struct {
	Offset int64    `json:"offset"`
	Hex    []string `json:"hex"`
	ASCII  string   `json:"ascii"`
}

// Dump splits buf into rows of width bytes. base is added to every row
// offset so a slice taken from the middle of a file keeps file offsets.
func Dump(buf []byte, base int64, width int) []DumpRow {
	if width <= 0 {
		width = DefaultDumpWidth
	}

	rows := make([]DumpRow, 0, (len(buf)+width-1)/width)
	for i := 0; i < len(buf); i += width {
		end := i + width
		if end > len(buf) {
			end = len(buf)
		}
		chunk := buf[i:end]

		row := DumpRow{
			Offset: base + int64(i),
			Hex:    make([]string, len(chunk)),
		}
		var ascii strings.Builder
		for j, b := range chunk {
			row.Hex[j] = fmt.Sprintf("%02X", b)
			if isPrintable(int(b)) {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		row.ASCII = ascii.String()
		rows = append(rows, row)
	}
	return rows
}

// WriteDump renders rows as "OFFSET  HH HH ..  |ascii|" lines. Short rows
// are padded so the ASCII column stays aligned.
func WriteDump(w io.Writer, rows []DumpRow, width int) error {
	if width <= 0 {
		width = DefaultDumpWidth
	}
	for _, row := range rows {
		hex := strings.Join(row.Hex, " ")
		if pad := width - len(row.Hex); pad > 0 {
			hex += strings.Repeat("   ", pad)
		}
		if _, err := fmt.Fprintf(w, "%08X  %s  |%s|\n", row.Offset, hex, row.ASCII); err != nil {
			return err
		}
	}
	return nil
}
