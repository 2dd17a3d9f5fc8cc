package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// Main Config Structure
// =============================================================================

// Config represents the application configuration
type Config struct {
	Source    SourceConfig    `toml:"source"`
	Storage   StorageConfig   `toml:"storage"`
	Ingestion IngestionConfig `toml:"ingestion"`
	Query     QueryConfig     `toml:"query"`
}

// =============================================================================
// Source Config
// =============================================================================

// SourceConfig contains telemetry input settings
type SourceConfig struct {
	InputPath string `toml:"input_path"` // path to newline-delimited JSON file ("-" for stdin)
	SchemaDir string `toml:"schema_dir"` // directory of *.toml schema definitions, keyed by event name
}

// =============================================================================
// Storage Config (flattened - RocksDB only)
// =============================================================================

// StorageConfig contains archive and index storage settings
type StorageConfig struct {
	ArchivePath string `toml:"archive_path"` // path to the RocksDB event archive directory
	IndexPath   string `toml:"index_path"`   // path to the meta/data bitmap index directory

	// Read performance
	BlockCacheSizeMB          int  `toml:"block_cache_size_mb"`           // LRU cache size (default: 64)
	BloomFilterBitsPerKey     int  `toml:"bloom_filter_bits_per_key"`     // Bloom filter bits (default: 10, 0 to disable)
	CacheIndexAndFilterBlocks bool `toml:"cache_index_and_filter_blocks"` // Cache indexes in block cache (default: true)

	// Background jobs
	MaxBackgroundJobs int `toml:"max_background_jobs"` // Parallel background threads (default: 4)
}

// =============================================================================
// Ingestion Config
// =============================================================================

// IngestionConfig contains ingestion settings
type IngestionConfig struct {
	// Progress tracking
	ProgressFile string `toml:"progress_file"` // Progress file path (empty = disabled)

	// Index maintenance during ingestion
	SaveIndexes bool `toml:"save_indexes"` // Persist meta/data indexes at the end of the run (default: true)

	// Parallelism
	Workers   int `toml:"workers"`    // Parallel workers (0 = NumCPU)
	BatchSize int `toml:"batch_size"` // Records per archive write batch (default: 100)
	QueueSize int `toml:"queue_size"` // Pipeline buffer (0 = workers * 2)
}

// =============================================================================
// Query Config
// =============================================================================

// QueryConfig contains query command settings
type QueryConfig struct {
	BatchSize int    `toml:"batch_size"` // Matches accumulated per NextChunk before returning (default: 256)
	SinkPath  string `toml:"sink_path"`  // File sink output path ("-" for stdout)
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			InputPath: "-",
			SchemaDir: "./schemas",
		},
		Storage: StorageConfig{
			ArchivePath: "./data/archive",
			IndexPath:   "./data/index",
			// Read performance
			BlockCacheSizeMB:          64,
			BloomFilterBitsPerKey:     10,
			CacheIndexAndFilterBlocks: true,
			// Background jobs
			MaxBackgroundJobs: 4,
		},
		Ingestion: IngestionConfig{
			ProgressFile: "", // Empty = disabled
			SaveIndexes:  true,
			Workers:      0, // 0 = NumCPU
			BatchSize:    100,
			QueueSize:    0, // 0 = workers * 2
		},
		Query: QueryConfig{
			BatchSize: 256,
			SinkPath:  "-",
		},
	}
}

// =============================================================================
// Loading and Validation
// =============================================================================

// LoadConfig loads configuration from a TOML file
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if _, err := toml.Decode(string(data), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Source.InputPath == "" {
		return fmt.Errorf("source.input_path is required")
	}

	if c.Storage.ArchivePath == "" {
		return fmt.Errorf("storage.archive_path is required")
	}

	if c.Storage.IndexPath == "" {
		return fmt.Errorf("storage.index_path is required")
	}

	return nil
}

// FindConfigFile searches, in order, ./evidex.toml, $XDG_CONFIG_HOME/evidex/config.toml
// (falling back to ~/.config/evidex/config.toml when XDG_CONFIG_HOME is unset), and
// /etc/evidex/config.toml.
func FindConfigFile() (string, error) {
	candidates := []string{"evidex.toml"}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "evidex", "config.toml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "evidex", "config.toml"))
	}

	candidates = append(candidates, filepath.Join("/etc", "evidex", "config.toml"))

	for _, name := range candidates {
		if _, err := os.Stat(name); err == nil {
			return name, nil
		}
	}

	return "", fmt.Errorf("config file not found. Create evidex.toml")
}
