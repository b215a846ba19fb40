package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grokify/bytelens/pkg/scan"
)

func TestFileRecordStoreNDJSON(t *testing.T) {
	var buf bytes.Buffer
	store, err := NewFileRecordStore(&FileRecordStoreConfig{Writer: &buf})
	if err != nil {
		t.Fatalf("NewFileRecordStore failed: %v", err)
	}

	recs := testRecords(t)
	if err := store.StoreBatch(context.Background(), recs); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}

	sc := bufio.NewScanner(&buf)
	lines := 0
	for sc.Scan() {
		var rec scan.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d is not JSON: %v", lines, err)
		}
		if rec.ID != recs[lines].ID {
			t.Errorf("line %d ID = %s, want %s", lines, rec.ID, recs[lines].ID)
		}
		lines++
	}
	if lines != len(recs) {
		t.Errorf("wrote %d lines, want %d", lines, len(recs))
	}
}

func TestFileRecordStoreJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	store, err := NewFileRecordStore(&FileRecordStoreConfig{Path: path, Format: FormatJSON})
	if err != nil {
		t.Fatalf("NewFileRecordStore failed: %v", err)
	}

	store.Handle(testRecords(t)[0])
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if !strings.Contains(string(data), "\n  \"name\": \"logo.png\"") {
		t.Errorf("expected indented JSON, got:\n%s", data)
	}

	if err := store.Store(context.Background(), testRecords(t)[0]); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}

func TestFileRecordStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "nested", "records.ndjson")
	store, err := NewFileRecordStore(&FileRecordStoreConfig{Path: path, Format: "jsonl"})
	if err != nil {
		t.Fatalf("NewFileRecordStore failed: %v", err)
	}
	if err := store.StoreBatch(context.Background(), testRecords(t)[:2]); err != nil {
		t.Fatalf("StoreBatch failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("wrote %d lines, want 2", n)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatNDJSON, false},
		{"ndjson", FormatNDJSON, false},
		{"JSONL", FormatNDJSON, false},
		{"json", FormatJSON, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := NewFileRecordStore(&FileRecordStoreConfig{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDiscardRecordStore(t *testing.T) {
	var store RecordStore = DiscardRecordStore{}
	if err := store.Store(context.Background(), testRecords(t)[0]); err != nil {
		t.Errorf("Store failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}
