package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grokify/bytelens/pkg/config"
	"github.com/grokify/bytelens/pkg/scan"
)

// runCLI executes the root command with a fresh config file and returns
// its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.DefaultConfig().Save(cfgPath); err != nil {
		t.Fatalf("Save config failed: %v", err)
	}

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	png := writeFile(t, dir, "logo.png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00})
	txt := writeFile(t, dir, "note.txt", []byte("see the pass\u200Bword field below for details"))

	out, err := runCLI(t, "analyze", png, txt)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	for _, want := range []string{"Format:    PNG", "Encoding:  ASCII/UTF-8", "Hidden:    1 found", "Zero Width Space"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "analyze", "--json", txt)
	if err != nil {
		t.Fatalf("analyze --json failed: %v", err)
	}
	var rec scan.Record
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if len(rec.Analysis.HiddenCharacters) != 1 || rec.Analysis.HiddenCharacters[0].Position != 12 {
		t.Errorf("hits = %+v", rec.Analysis.HiddenCharacters)
	}

	if _, err := runCLI(t, "analyze", filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestInspectCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.bin", []byte("ABCDEF"))

	tests := []struct {
		name    string
		args    []string
		want    []string
		wantErr bool
	}{
		{name: "default", args: []string{path}, want: []string{"OFFSET", "41", "01000001", "F"}},
		{name: "hex offset", args: []string{path, "--offset", "0x4", "-n", "1"}, want: []string{"00000004", "45", "105"}},
		{name: "past end", args: []string{path, "--offset", "100"}, want: []string{"no bytes at offset 100"}},
		{name: "bad offset", args: []string{path, "--offset", "zz"}, wantErr: true},
		{name: "negative length", args: []string{path, "-n", "-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"inspect"}, tt.args...)...)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("inspect failed: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestDumpCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.txt", []byte("ABCDEFGHIJ"))

	out, err := runCLI(t, "dump", path, "--offset", "2", "--width", "4", "-n", "6")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "00000002  43 44 45 46") || !strings.HasSuffix(lines[0], "|CDEF|") {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "|GH|") {
		t.Errorf("second line = %q", lines[1])
	}
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("plain text file"))
	writeFile(t, dir, "sub/b.txt", []byte("zero\u200Bwidth text in here and some more words"))
	writeFile(t, dir, "c.log", []byte("skipped"))
	writeFile(t, dir, ".git/HEAD", []byte("ref: refs/heads/main"))

	db := "sqlite://" + filepath.Join(t.TempDir(), "records.db")

	out, err := runCLI(t, "scan", dir, "--include", "*.txt", "--db", db, "--json")
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	var summary scan.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if summary.Analyzed != 2 || summary.WithHidden != 1 {
		t.Errorf("summary = %+v", summary)
	}

	out, err = runCLI(t, "records", "list", "--db", db, "--hidden")
	if err != nil {
		t.Fatalf("records list failed: %v", err)
	}
	if !strings.Contains(out, "b.txt") || strings.Contains(out, "a.txt") {
		t.Errorf("unexpected list output:\n%s", out)
	}
	if !strings.Contains(out, "1 of 1 records") {
		t.Errorf("missing count line:\n%s", out)
	}

	out, err = runCLI(t, "records", "stats", "--db", db)
	if err != nil {
		t.Fatalf("records stats failed: %v", err)
	}
	if !strings.Contains(out, "Records:      2") {
		t.Errorf("unexpected stats output:\n%s", out)
	}

	if _, err := runCLI(t, "records", "show", "--db", db, "nope"); err == nil {
		t.Error("expected error for unknown record")
	}
}

func TestScanStorage(t *testing.T) {
	base := config.DefaultConfig().Storage

	tests := []struct {
		name      string
		opts      scanOptions
		wantType  string
		wantAsync bool
	}{
		{name: "stdout file becomes none", opts: scanOptions{}, wantType: config.StorageNone},
		{name: "explicit stdout", opts: scanOptions{output: "-"}, wantType: config.StorageFile, wantAsync: true},
		{name: "file", opts: scanOptions{output: "out.ndjson"}, wantType: config.StorageFile, wantAsync: true},
		{name: "database", opts: scanOptions{db: "sqlite::memory:"}, wantType: config.StorageDatabase, wantAsync: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scanStorage(base, &tt.opts)
			if got.Type != tt.wantType {
				t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
			}
			if got.Async.Enabled != tt.wantAsync || got.Async.Block != tt.wantAsync {
				t.Errorf("Async = %+v, want enabled and blocking = %v", got.Async, tt.wantAsync)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 7, false},
		{"512", 512, false},
		{"1KB", 1000, false},
		{"1KiB", 1024, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		got, err := parseSize(tt.in, 7)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseSize(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	if _, err := runCLI(t, "config", "init", "-o", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := config.Load(path); err != nil {
		t.Errorf("created config does not load: %v", err)
	}
	if _, err := runCLI(t, "config", "init", "-o", path); err == nil {
		t.Error("expected error when config exists")
	}
	if _, err := runCLI(t, "config", "init", "-o", path, "--force"); err != nil {
		t.Errorf("config init --force failed: %v", err)
	}

	out, err := runCLI(t, "config", "show", "--example")
	if err != nil {
		t.Fatalf("config show --example failed: %v", err)
	}
	if !strings.Contains(out, "sqlite://bytelens.db") {
		t.Errorf("example config missing database URL:\n%s", out)
	}

	out, err = runCLI(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, "width: 16") || strings.Contains(out, "sqlite://bytelens.db") {
		t.Errorf("unexpected effective config:\n%s", out)
	}

	bad := writeFile(t, t.TempDir(), "bad.yaml", []byte("storage:\n  type: tape\n"))
	out, err = runCLI(t, "config", "validate", path, bad)
	if err == nil {
		t.Error("expected error for invalid config")
	}
	if !strings.Contains(out, path+": ok") {
		t.Errorf("validate output missing ok line:\n%s", out)
	}
}
