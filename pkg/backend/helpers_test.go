package backend

import (
	"testing"
	"time"

	"github.com/grokify/bytelens/pkg/scan"
)

var testBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// testRecords returns four records analyzed one minute apart:
// PNG, plain text, text with a zero width space, PDF.
func testRecords(t *testing.T) []*scan.Record {
	t.Helper()

	inputs := []struct {
		path string
		data []byte
	}{
		{"img/logo.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00}},
		{"docs/readme.txt", []byte("hello world")},
		{"docs/hidden.txt", []byte("the pass\u200Bword field is ready for review")},
		{"docs/report.pdf", []byte("%PDF-1.7\n%binary")},
	}

	recs := make([]*scan.Record, len(inputs))
	for i, in := range inputs {
		rec := scan.NewRecord(in.path, in.data, int64(len(in.data)))
		rec.AnalyzedAt = testBase.Add(time.Duration(i) * time.Minute)
		recs[i] = rec
	}
	return recs
}
