// Package analysis inspects raw byte buffers: file signatures (magic bytes),
// byte-order marks and a coarse encoding verdict, hidden zero-width
// characters, and per-byte representations for hex viewers.
//
// Every function in this package is pure. Buffers are never modified and no
// state is shared between calls, so concurrent use is safe.
//
// Example usage:
//
//	res := analysis.Analyze(data)
//	if res.MatchedSignature != nil {
//	    fmt.Println("format:", res.MatchedSignature.FormatName)
//	}
//	fmt.Println("encoding:", res.Encoding, "hidden:", len(res.HiddenCharacters))
package analysis

// FileAnalysisResult is the combined result of one Analyze call.
type FileAnalysisResult struct {
	// Size is the length of the analyzed buffer in bytes
	Size int `json:"size"`
	// MatchedSignature is the first signature table entry that prefixes the buffer, or nil
	MatchedSignature *SignatureEntry `json:"matchedSignature,omitempty"`
	// HiddenCharacters lists every hidden codepoint found, grouped by codepoint table order
	HiddenCharacters []GhostCharacterHit `json:"hiddenCharacters"`
	// HasBOM is true if the buffer starts with a UTF-8 or UTF-16 byte-order mark
	HasBOM bool `json:"hasBOM"`
	// Encoding is the BOM label or the ASCII-ratio verdict
	Encoding Encoding `json:"encoding"`
	// TextStatus tells apart undecodable input from text without hidden characters
	TextStatus TextStatus `json:"textStatus"`
}

// Analyze runs the signature matcher, the BOM/encoding detector and the
// hidden-character scanner over buf and merges their results.
func Analyze(buf []byte) FileAnalysisResult {
	res := FileAnalysisResult{
		Size:     len(buf),
		HasBOM:   DetectBOM(buf),
		Encoding: DetectEncoding(buf),
	}

	if sig, ok := MatchSignature(buf); ok {
		res.MatchedSignature = &sig
	}

	text := ScanText(buf)
	res.HiddenCharacters = text.Hits
	res.TextStatus = text.Status

	return res
}
