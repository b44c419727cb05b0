// Package config provides configuration loading and structs for utsushi.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Index     IndexConfig     `yaml:"index"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Remote    RemoteConfig    `yaml:"remote"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	MaxUploadMB       int      `yaml:"max_upload_mb"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// StorageConfig holds paths for the index, its metadata and the supporting stores.
type StorageConfig struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"` // empty: next to the index file
	LedgerPath   string `yaml:"ledger_path"`
	CatalogPath  string `yaml:"catalog_path"`
	CachePath    string `yaml:"cache_path"` // empty: no persistent feature cache

	Snapshot SnapshotConfig `yaml:"snapshot"`
}

// SnapshotConfig selects where index snapshots are published.
type SnapshotConfig struct {
	Type     string `yaml:"type"` // local or s3
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// IndexConfig selects the vector index implementation.
type IndexConfig struct {
	Type string `yaml:"type"` // flat or faiss
}

// ExtractorConfig holds feature extractor settings.
type ExtractorConfig struct {
	Type          string `yaml:"type"` // onnx or histogram
	ModelPath     string `yaml:"model_path"`
	InputName     string `yaml:"input_name"`
	OutputName    string `yaml:"output_name"`
	Dimensions    int    `yaml:"dimensions"`
	ImageSize     int    `yaml:"image_size"`
	CacheSize     int    `yaml:"cache_size"`
	HistogramBins int    `yaml:"histogram_bins"`
}

// DatasetConfig describes the local dataset layout.
type DatasetConfig struct {
	Root       string   `yaml:"root"`
	Categories []string `yaml:"categories"`
	Extensions []string `yaml:"extensions"`
}

// RemoteConfig holds remote fetch settings.
type RemoteConfig struct {
	MaxResults   int           `yaml:"max_results"`
	Workers      int           `yaml:"workers"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	MaxBytes     int64         `yaml:"max_bytes"`
	UserAgent    string        `yaml:"user_agent"`
}

// SearchConfig holds query limits.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// WatchConfig holds dataset watch settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (s *ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.IndexPath = expandPath(cfg.Storage.IndexPath, configDir)
	cfg.Storage.MetadataPath = expandPath(cfg.Storage.MetadataPath, configDir)
	cfg.Storage.LedgerPath = expandPath(cfg.Storage.LedgerPath, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Storage.CachePath = expandPath(cfg.Storage.CachePath, configDir)
	cfg.Storage.Snapshot.Dir = expandPath(cfg.Storage.Snapshot.Dir, configDir)
	cfg.Extractor.ModelPath = expandPath(cfg.Extractor.ModelPath, configDir)
	cfg.Dataset.Root = expandPath(cfg.Dataset.Root, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
