package analysis

import "bytes"

// SignatureEntry is a known file signature (magic bytes at offset 0).
type SignatureEntry struct {
	Prefix      []byte `json:"prefix"`
	FormatName  string `json:"formatName"`
	Description string `json:"description"`
}

// signatureTable is tried in order; the first matching prefix wins.
// Keep shorter prefixes after any longer prefix they could shadow.
var signatureTable = []SignatureEntry{
	{Prefix: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, FormatName: "PNG", Description: "Portable Network Graphics image"},
	{Prefix: []byte{0xFF, 0xD8, 0xFF}, FormatName: "JPEG", Description: "JPEG image"},
	{Prefix: []byte{0x47, 0x49, 0x46, 0x38}, FormatName: "GIF", Description: "Graphics Interchange Format image"}, // GIF8
	{Prefix: []byte{0x25, 0x50, 0x44, 0x46}, FormatName: "PDF", Description: "Portable Document Format"},          // %PDF
	{Prefix: []byte{0x50, 0x4B, 0x03, 0x04}, FormatName: "ZIP", Description: "ZIP archive (also DOCX, XLSX, JAR)"}, // PK..
	{Prefix: []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07}, FormatName: "RAR", Description: "RAR archive"},
	{Prefix: []byte{0x1F, 0x8B}, FormatName: "GZIP", Description: "GZIP compressed data"},
	{Prefix: []byte{0x42, 0x4D}, FormatName: "BMP", Description: "Windows bitmap image"}, // BM
	{Prefix: []byte{0x49, 0x49, 0x2A, 0x00}, FormatName: "TIFF (Little Endian)", Description: "Tagged Image File Format, Intel byte order"},
	{Prefix: []byte{0x4D, 0x4D, 0x00, 0x2A}, FormatName: "TIFF (Big Endian)", Description: "Tagged Image File Format, Motorola byte order"},
	{Prefix: []byte{0x7F, 0x45, 0x4C, 0x46}, FormatName: "ELF", Description: "Executable and Linkable Format"},
	{Prefix: []byte{0x4D, 0x5A}, FormatName: "EXE", Description: "Windows/DOS executable (MZ)"},
}

// Signatures returns a copy of the signature table in match order.
func Signatures() []SignatureEntry {
	out := make([]SignatureEntry, len(signatureTable))
	for i, sig := range signatureTable {
		out[i] = sig.clone()
	}
	return out
}

// MatchSignature returns the first table entry whose prefix is a byte-exact
// prefix of buf. Table order, not prefix length, decides between entries.
func MatchSignature(buf []byte) (SignatureEntry, bool) {
	for _, sig := range signatureTable {
		if hasPrefix(buf, sig.Prefix) {
			return sig.clone(), true
		}
	}
	return SignatureEntry{}, false
}

func hasPrefix(buf, prefix []byte) bool {
	return len(prefix) > 0 && bytes.HasPrefix(buf, prefix)
}

// clone copies the prefix so callers cannot reach into the table.
func (s SignatureEntry) clone() SignatureEntry {
	p := make([]byte, len(s.Prefix))
	copy(p, s.Prefix)
	s.Prefix = p
	return s
}
