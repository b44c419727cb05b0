package config

import "time"

// DefaultCategories are the dataset subdirectories indexed when none are configured.
var DefaultCategories = []string{
	"cars", "motorbikes", "pandas", "manchester_united_jersey", "laptops",
	"orange", "burger", "jeans", "xrays", "dogs",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.AllowedExtensions == nil {
		cfg.Server.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "/usr/local/var/utsushi/data/index/vectors.bin"
	}
	if cfg.Storage.LedgerPath == "" {
		cfg.Storage.LedgerPath = "/usr/local/var/utsushi/data/db/ledger.db"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "/usr/local/var/utsushi/data/catalog"
	}
	if cfg.Storage.Snapshot.Type == "" {
		cfg.Storage.Snapshot.Type = "local"
	}
	if cfg.Storage.Snapshot.Type == "local" && cfg.Storage.Snapshot.Dir == "" {
		cfg.Storage.Snapshot.Dir = "/usr/local/var/utsushi/data/snapshots"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Extractor.Type == "" {
		cfg.Extractor.Type = "onnx"
	}
	if cfg.Extractor.ModelPath == "" {
		cfg.Extractor.ModelPath = "/usr/local/var/utsushi/data/models/vgg19-fc2.onnx"
	}
	if cfg.Extractor.InputName == "" {
		cfg.Extractor.InputName = "input"
	}
	if cfg.Extractor.OutputName == "" {
		cfg.Extractor.OutputName = "output"
	}
	if cfg.Extractor.Dimensions == 0 {
		cfg.Extractor.Dimensions = 4096
	}
	if cfg.Extractor.ImageSize == 0 {
		cfg.Extractor.ImageSize = 224
	}
	if cfg.Extractor.CacheSize == 0 {
		cfg.Extractor.CacheSize = 10000
	}
	if cfg.Extractor.HistogramBins == 0 {
		cfg.Extractor.HistogramBins = 8
	}
	if cfg.Dataset.Root == "" {
		cfg.Dataset.Root = "/usr/local/var/utsushi/dataset"
	}
	if cfg.Dataset.Categories == nil {
		cfg.Dataset.Categories = append([]string(nil), DefaultCategories...)
	}
	if cfg.Dataset.Extensions == nil {
		cfg.Dataset.Extensions = []string{".jpg", ".jpeg", ".png"}
	}
	if cfg.Remote.MaxResults == 0 {
		cfg.Remote.MaxResults = 10
	}
	if cfg.Remote.Workers == 0 {
		cfg.Remote.Workers = 5
	}
	if cfg.Remote.FetchTimeout == 0 {
		cfg.Remote.FetchTimeout = 5 * time.Second
	}
	if cfg.Remote.MaxBytes == 0 {
		cfg.Remote.MaxBytes = 20 << 20
	}
	if cfg.Remote.UserAgent == "" {
		cfg.Remote.UserAgent = "utsushi/1.0"
	}
	if cfg.Search.DefaultK == 0 {
		cfg.Search.DefaultK = 10
	}
	if cfg.Search.MaxK == 0 {
		cfg.Search.MaxK = 100
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 400 * time.Millisecond
	}
}
