// Package config provides configuration file support for ByteLens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage types.
const (
	StorageNone     = "none"
	StorageFile     = "file"
	StorageMemory   = "memory"
	StorageDatabase = "database"
)

// Config represents the ByteLens configuration file.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Scan configuration
	Scan ScanConfig `yaml:"scan"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Hex dump configuration
	Dump DumpConfig `yaml:"dump"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host to bind to
	Host string `yaml:"host"`
	// Port to listen on
	Port int `yaml:"port"`
	// Verbose logging
	Verbose bool `yaml:"verbose"`
	// MaxUploadSize is the largest request body accepted for analysis
	MaxUploadSize int64 `yaml:"maxUploadSize"`
	// ReadTimeout bounds reading a request, including its body
	ReadTimeout time.Duration `yaml:"readTimeout"`
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// ScanConfig holds directory scan configuration.
type ScanConfig struct {
	// Include is a list of file patterns to include
	Include []string `yaml:"include,omitempty"`
	// Exclude is a list of file patterns to exclude
	Exclude []string `yaml:"exclude,omitempty"`
	// ExcludeDirs is a list of directory names to skip
	ExcludeDirs []string `yaml:"excludeDirs,omitempty"`
	// MinSize is the minimum file size to analyze
	MinSize int64 `yaml:"minSize,omitempty"`
	// MaxSize is the maximum file size to analyze (0 means no limit)
	MaxSize int64 `yaml:"maxSize,omitempty"`
	// MaxReadBytes is how much of each file is analyzed
	MaxReadBytes int64 `yaml:"maxReadBytes"`
	// Workers is the number of files analyzed concurrently (0 means NumCPU)
	Workers int `yaml:"workers"`
}

// StorageConfig holds record storage configuration.
type StorageConfig struct {
	// Type is the backend: none, file, memory or database
	Type string `yaml:"type"`
	// Output is the file path for the file backend (empty means stdout)
	Output string `yaml:"output,omitempty"`
	// Format is the file backend format (ndjson, json)
	Format string `yaml:"format"`
	// Database is the database URL for the database backend
	Database string `yaml:"database,omitempty"`
	// MemoryCapacity is the number of records kept by the memory backend
	MemoryCapacity int `yaml:"memoryCapacity"`
	// Debug logs SQL statements
	Debug bool `yaml:"debug,omitempty"`
	// Async buffers writes in the background
	Async AsyncConfig `yaml:"async"`
}

// AsyncConfig holds async write configuration.
type AsyncConfig struct {
	Enabled     bool          `yaml:"enabled"`
	QueueSize   int           `yaml:"queueSize"`
	BatchSize   int           `yaml:"batchSize"`
	FlushPeriod time.Duration `yaml:"flushPeriod"`
	Workers     int           `yaml:"workers"`
	// Block waits for queue space instead of dropping records
	Block bool `yaml:"block,omitempty"`
}

// DumpConfig holds hex dump defaults.
type DumpConfig struct {
	// Width is the number of bytes per row
	Width int `yaml:"width"`
	// Length is the default number of bytes dumped (0 means all)
	Length int `yaml:"length"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics
	Enabled bool `yaml:"enabled"`
	// Port is the metrics and health port
	Port int `yaml:"port"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			Verbose:         false,
			MaxUploadSize:   32 * 1024 * 1024, // 32MB
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Scan: ScanConfig{
			ExcludeDirs:  []string{".git", ".hg", ".svn", "node_modules"},
			MaxReadBytes: 10 * 1024 * 1024, // 10MB
		},
		Storage: StorageConfig{
			Type:           StorageFile,
			Format:         "ndjson",
			MemoryCapacity: 1000,
			Async: AsyncConfig{
				Enabled:     false,
				QueueSize:   10000,
				BatchSize:   100,
				FlushPeriod: 100 * time.Millisecond,
				Workers:     2,
			},
		},
		Dump: DumpConfig{
			Width:  16,
			Length: 512,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageNone, StorageFile, StorageMemory:
	case StorageDatabase:
		if c.Storage.Database == "" {
			return fmt.Errorf("storage.database is required for database storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.Storage.Type)
	}

	switch c.Storage.Format {
	case "", "ndjson", "jsonl", "json":
	default:
		return fmt.Errorf("unknown storage format: %q", c.Storage.Format)
	}

	if c.Dump.Width < 0 {
		return fmt.Errorf("dump.width must not be negative")
	}

	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return cfg, nil
}

// LoadOrDefault loads configuration from a file, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "bytelens.yaml"
	}
	return filepath.Join(home, ".bytelens", "config.yaml")
}

// ExampleConfig returns an example configuration as YAML string.
func ExampleConfig() string {
	cfg := DefaultConfig()
	cfg.Scan.Include = []string{"*.txt", "*.md", "*.go"}
	cfg.Scan.Exclude = []string{"*.min.js"}
	cfg.Storage.Type = StorageDatabase
	cfg.Storage.Database = "sqlite://bytelens.db"
	cfg.Storage.Async.Enabled = true
	cfg.Metrics.Enabled = true

	data, _ := yaml.Marshal(cfg)
	return string(data)
}
