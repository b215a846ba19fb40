package analysis

// Encoding is the verdict of DetectEncoding. It is a closed set.
type Encoding string

const (
	EncodingUTF8BOM    Encoding = "UTF-8 (with BOM)"
	EncodingUTF16BEBOM Encoding = "UTF-16 BE (with BOM)"
	EncodingUTF16LEBOM Encoding = "UTF-16 LE (with BOM)"
	EncodingASCII      Encoding = "ASCII/UTF-8"
	EncodingBinary     Encoding = "Binary"
)

const (
	// encodingSampleSize caps how many leading bytes the ASCII heuristic reads.
	encodingSampleSize = 1000
	// asciiThreshold is the ratio of bytes < 0x80 that must be exceeded for text.
	asciiThreshold = 0.9
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

// DetectBOM reports whether buf starts with a UTF-8, UTF-16 BE or UTF-16 LE
// byte-order mark.
func DetectBOM(buf []byte) bool {
	return bomEncoding(buf) != ""
}

// DetectEncoding returns the labeled BOM verdict when a BOM is present.
// Otherwise it samples at most the first 1000 bytes and returns EncodingASCII
// if more than 90% of them are below 0x80, else EncodingBinary.
//
// Mostly non-ASCII UTF-8 text is reported as Binary. An empty buffer is
// reported as ASCII/UTF-8.
func DetectEncoding(buf []byte) Encoding {
	if enc := bomEncoding(buf); enc != "" {
		return enc
	}

	sample := buf
	if len(sample) > encodingSampleSize {
		sample = sample[:encodingSampleSize]
	}
	if len(sample) == 0 {
		return EncodingASCII
	}

	ascii := 0
	for _, b := range sample {
		if b < 0x80 {
			ascii++
		}
	}

	if float64(ascii)/float64(len(sample)) > asciiThreshold {
		return EncodingASCII
	}
	return EncodingBinary
}

// bomEncoding checks UTF-8 first, then UTF-16 BE, then UTF-16 LE.
func bomEncoding(buf []byte) Encoding {
	switch {
	case hasPrefix(buf, bomUTF8):
		return EncodingUTF8BOM
	case hasPrefix(buf, bomUTF16BE):
		return EncodingUTF16BEBOM
	case hasPrefix(buf, bomUTF16LE):
		return EncodingUTF16LEBOM
	default:
		return ""
	}
}
