package analysis

import (
	"fmt"
	"strconv"
)

// NonPrintableGlyph stands in for bytes outside printable ASCII.
const NonPrintableGlyph = "·"

// ByteDetail is every common representation of a single byte.
type ByteDetail struct {
	Offset  int64  `json:"offset"`
	Value   int    `json:"value"`
	Hex     string `json:"hex"`
	Octal   string `json:"octal"`
	Decimal string `json:"decimal"`
	Binary  string `json:"binary"`
	ASCII   string `json:"ascii"`
}

// InspectByte describes value at offset. Neither argument is validated;
// values outside 0-255 produce well-formed but meaningless strings.
func InspectByte(offset int64, value int) ByteDetail {
	ascii := NonPrintableGlyph
	if isPrintable(value) {
		ascii = string(rune(value))
	}

	return ByteDetail{
		Offset:  offset,
		Value:   value,
		Hex:     fmt.Sprintf("%02X", value),
		Octal:   fmt.Sprintf("%03o", value),
		Decimal: strconv.Itoa(value),
		Binary:  fmt.Sprintf("%08b", value),
		ASCII:   ascii,
	}
}

// InspectRange inspects up to length bytes of buf starting at offset.
// The range is clamped to the buffer; a negative length means "to the end".
func InspectRange(buf []byte, offset int64, length int) []ByteDetail {
	start, end := ClampRange(len(buf), offset, length)
	out := make([]ByteDetail, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, InspectByte(int64(i), int(buf[i])))
	}
	return out
}

func isPrintable(v int) bool {
	return v >= 32 && v <= 126
}

// ClampRange maps offset and length onto a buffer of size bytes and
// returns the half-open index range [start, end). A negative offset counts
// as 0, and a negative length, or one running past the end, means "to the
// end". It never overflows, whatever the inputs.
func ClampRange(size int, offset int64, length int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset >= int64(size) {
		return size, size
	}
	start = int(offset)
	end = size
	if length >= 0 && length < size-start {
		end = start + length
	}
	return start, end
}
