package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  index_path: "index.bin"
index:
  type: faiss
remote:
  fetch_timeout: 2s
  workers: 3
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if !filepath.IsAbs(cfg.Storage.IndexPath) {
		t.Errorf("index_path should be absolute, got %s", cfg.Storage.IndexPath)
	}
	if cfg.Index.Type != "faiss" {
		t.Errorf("index type: got %s", cfg.Index.Type)
	}
	if cfg.Remote.FetchTimeout != 2*time.Second || cfg.Remote.Workers != 3 {
		t.Errorf("unexpected remote config: %+v", cfg.Remote)
	}
	if cfg.Storage.MetadataPath != "" || cfg.Storage.CachePath != "" {
		t.Errorf("optional paths should stay empty: %+v", cfg.Storage)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  index_path: "./data/index/vectors.bin"
  metadata_path: "./data/index/vectors.json"
dataset:
  root: "./dataset"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"index_path", cfg.Storage.IndexPath, filepath.Join(dir, "data", "index", "vectors.bin")},
		{"metadata_path", cfg.Storage.MetadataPath, filepath.Join(dir, "data", "index", "vectors.json")},
		{"dataset root", cfg.Dataset.Root, filepath.Join(dir, "dataset")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
		}
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" || cfg.Server.Port != 8080 {
		t.Errorf("default server: got %+v", cfg.Server)
	}
	if cfg.Server.MaxUploadBytes() != 50<<20 {
		t.Errorf("default upload cap: got %d", cfg.Server.MaxUploadBytes())
	}
	if len(cfg.Server.AllowedExtensions) != 5 {
		t.Errorf("allowed extensions: got %v", cfg.Server.AllowedExtensions)
	}
	if cfg.Index.Type != "flat" || cfg.Extractor.Type != "onnx" {
		t.Errorf("default types: index=%s extractor=%s", cfg.Index.Type, cfg.Extractor.Type)
	}
	if cfg.Extractor.Dimensions != 4096 || cfg.Extractor.ImageSize != 224 || cfg.Extractor.HistogramBins != 8 {
		t.Errorf("extractor defaults: got %+v", cfg.Extractor)
	}
	if len(cfg.Dataset.Categories) != 10 || cfg.Dataset.Categories[3] != "manchester_united_jersey" {
		t.Errorf("categories: got %v", cfg.Dataset.Categories)
	}
	if len(cfg.Dataset.Extensions) != 3 || cfg.Dataset.Extensions[0] != ".jpg" {
		t.Errorf("dataset extensions: got %v", cfg.Dataset.Extensions)
	}
	if cfg.Remote.Workers != 5 || cfg.Remote.FetchTimeout != 5*time.Second {
		t.Errorf("remote defaults: got %+v", cfg.Remote)
	}
	if cfg.Search.DefaultK != 10 || cfg.Search.MaxK != 100 {
		t.Errorf("search defaults: got %+v", cfg.Search)
	}
	if cfg.Storage.Snapshot.Type != "local" || cfg.Storage.Snapshot.Dir == "" {
		t.Errorf("snapshot defaults: got %+v", cfg.Storage.Snapshot)
	}
}

func TestApplyDefaults_categoriesNotShared(t *testing.T) {
	a, b := &Config{}, &Config{}
	ApplyDefaults(a)
	ApplyDefaults(b)
	a.Dataset.Categories[0] = "changed"
	if b.Dataset.Categories[0] != "cars" || DefaultCategories[0] != "cars" {
		t.Error("default categories must be copied per config")
	}
}

func TestApplyDefaults_s3SnapshotHasNoDir(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Snapshot: SnapshotConfig{Type: "s3", Bucket: "b"}}}
	ApplyDefaults(cfg)
	if cfg.Storage.Snapshot.Dir != "" {
		t.Errorf("s3 snapshot should not get a local dir, got %s", cfg.Storage.Snapshot.Dir)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{IndexPath: "/tmp/index.bin"},
		Remote:  RemoteConfig{FetchTimeout: 3 * time.Second},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 || loaded.Storage.IndexPath != "/tmp/index.bin" {
		t.Errorf("loaded config: %+v", loaded)
	}
	if loaded.Remote.FetchTimeout != 3*time.Second {
		t.Errorf("loaded fetch timeout: got %v", loaded.Remote.FetchTimeout)
	}
}
