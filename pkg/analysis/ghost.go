package analysis

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// GhostCharacter is an invisible codepoint the scanner looks for.
type GhostCharacter struct {
	Name        string
	Codepoint   rune
	Description string
}

// GhostCharacterHit is one occurrence of a GhostCharacter in decoded text.
type GhostCharacterHit struct {
	// Position is the index in decoded characters (runes), not the byte offset
	Position    int    `json:"position"`
	Name        string `json:"name"`
	Codepoint   rune   `json:"codepoint"`
	Description string `json:"description"`
}

// TextStatus is the outcome of decoding a buffer for the hidden-character scan.
type TextStatus string

const (
	TextStatusNotText      TextStatus = "not-text"
	TextStatusTextNoHits   TextStatus = "text-no-hits"
	TextStatusTextWithHits TextStatus = "text-with-hits"
)

// TextScan is the result of ScanText.
type TextScan struct {
	Status TextStatus          `json:"status"`
	Hits   []GhostCharacterHit `json:"hits"`
}

var ghostCharacters = []GhostCharacter{
	{Name: "Zero Width Space", Codepoint: 0x200B, Description: "Invisible space that allows line breaks"},
	{Name: "Zero Width Non-Joiner", Codepoint: 0x200C, Description: "Prevents ligatures between adjacent characters"},
	{Name: "Zero Width Joiner", Codepoint: 0x200D, Description: "Joins adjacent characters (emoji sequences)"},
	{Name: "Byte Order Mark", Codepoint: 0xFEFF, Description: "Zero width no-break space / BOM inside text"},
	{Name: "Soft Hyphen", Codepoint: 0x00AD, Description: "Hyphen shown only at a line break"},
}

// GhostCharacters returns the scanned codepoints in scan order.
func GhostCharacters() []GhostCharacter {
	out := make([]GhostCharacter, len(ghostCharacters))
	copy(out, ghostCharacters)
	return out
}

// ScanGhostCharacters decodes buf as text and returns every occurrence of the
// hidden codepoints. Hits are grouped by codepoint in GhostCharacters order
// and ascending by position within a group; sort the result for buffer order.
// Decode failures yield an empty result; use ScanText to tell them apart.
func ScanGhostCharacters(buf []byte) []GhostCharacterHit {
	return ScanText(buf).Hits
}

// ScanText is ScanGhostCharacters with the decode outcome made explicit.
func ScanText(buf []byte) TextScan {
	runes, err := decodeText(buf)
	if err != nil {
		return TextScan{Status: TextStatusNotText, Hits: []GhostCharacterHit{}}
	}

	hits := []GhostCharacterHit{}
	for _, gc := range ghostCharacters {
		for i, r := range runes {
			if r == gc.Codepoint {
				hits = append(hits, GhostCharacterHit{
					Position:    i,
					Name:        gc.Name,
					Codepoint:   gc.Codepoint,
					Description: gc.Description,
				})
			}
		}
	}

	if len(hits) == 0 {
		return TextScan{Status: TextStatusTextNoHits, Hits: hits}
	}
	return TextScan{Status: TextStatusTextWithHits, Hits: hits}
}

// decodeText decodes buf tolerantly. Malformed UTF-8 becomes U+FFFD. A
// leading BOM selects the decoder and is not part of the returned text.
func decodeText(buf []byte) ([]rune, error) {
	if len(buf) == 0 {
		return nil, nil
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, buf)
	if err != nil {
		return nil, err
	}
	return []rune(string(out)), nil
}
