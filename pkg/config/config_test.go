package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Type != StorageFile {
		t.Errorf("Storage.Type = %q, want %q", cfg.Storage.Type, StorageFile)
	}
	if cfg.Dump.Width != 16 {
		t.Errorf("Dump.Width = %d, want 16", cfg.Dump.Width)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Port = 9999
	cfg.Scan.Include = []string{"*.txt"}
	cfg.Storage.Type = StorageDatabase
	cfg.Storage.Database = "sqlite::memory:"
	cfg.Storage.Async.FlushPeriod = 250 * time.Millisecond

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", loaded.Server.Port)
	}
	if len(loaded.Scan.Include) != 1 || loaded.Scan.Include[0] != "*.txt" {
		t.Errorf("Scan.Include = %v", loaded.Scan.Include)
	}
	if loaded.Storage.Async.FlushPeriod != 250*time.Millisecond {
		t.Errorf("FlushPeriod = %v, want 250ms", loaded.Storage.Async.FlushPeriod)
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "server:\n  port: 7000\ndump:\n  width: 8\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 7000 || cfg.Dump.Width != 8 {
		t.Errorf("overrides not applied: %+v %+v", cfg.Server, cfg.Dump)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default", cfg.Server.Host)
	}
	if cfg.Storage.MemoryCapacity != 1000 {
		t.Errorf("Storage.MemoryCapacity = %d, want default", cfg.Storage.MemoryCapacity)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "server: [", "failed to parse"},
		{"unknown storage", "storage:\n  type: kafka\n", "unknown storage type"},
		{"database without url", "storage:\n  type: database\n", "storage.database is required"},
		{"bad format", "storage:\n  format: har\n", "unknown storage format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil || cfg == nil {
		t.Fatalf("LoadOrDefault(\"\") = %v, %v", cfg, err)
	}

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault(missing) failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected defaults for missing file")
	}
}

func TestExampleConfig(t *testing.T) {
	example := ExampleConfig()

	for _, want := range []string{"storage:", "type: database", "include:", "metrics:"} {
		if !strings.Contains(example, want) {
			t.Errorf("example config missing %q", want)
		}
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if !strings.HasSuffix(path, "config.yaml") && path != "bytelens.yaml" {
		t.Errorf("unexpected default path %q", path)
	}
}
