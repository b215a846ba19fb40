package analysis

import (
	"github.com/h2non/filetype"
)

// DefaultMIMEType is returned by SniffMIME when the content is not recognized.
const DefaultMIMEType = "application/octet-stream"

// sniffBytes is the header length filetype needs to recognize any of its types.
const sniffBytes = 262

// SniffMIME returns a MIME type and extension hint for buf. It uses a much
// larger type database than the signature table and is informational only.
func SniffMIME(buf []byte) (string, string) {
	head := buf
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || kind.MIME.Value == "" {
		return DefaultMIMEType, ""
	}
	return kind.MIME.Value, kind.Extension
}
