package vector

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// metadataSuffix is appended to an index file path to derive its metadata file.
const metadataSuffix = ".meta.json"

// MetadataPath returns the default metadata file paired with indexPath.
func MetadataPath(indexPath string) string {
	return indexPath + metadataSuffix
}

// metadataRecord is the on-disk shape of one slot. Field names follow the
// metadata files produced by earlier builds of the dataset index.
type metadataRecord struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// Option configures an index.
type Option func(*options)

type options struct {
	metadataPath string
}

// WithMetadataPath stores metadata at an explicit path instead of next to the index file.
func WithMetadataPath(path string) Option {
	return func(o *options) { o.metadataPath = path }
}

func (o *options) metadataFor(indexPath string) string {
	if o.metadataPath != "" {
		return o.metadataPath
	}
	return MetadataPath(indexPath)
}

func writeMetadata(path string, entries []Entry) error {
	records := make(map[string]metadataRecord, len(entries))
	for _, e := range entries {
		records[strconv.Itoa(e.Slot)] = metadataRecord{URL: e.Identifier, Index: e.Slot}
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(records)
	})
}

// readMetadata decodes the metadata file into a dense slot table.
func readMetadata(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()
	var records map[string]metadataRecord
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	entries := make([]Entry, len(records))
	seen := make([]bool, len(records))
	for key, rec := range records {
		slot, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%w: metadata key %q is not a slot number", ErrInconsistentState, key)
		}
		if slot < 0 || slot >= len(records) || seen[slot] {
			return nil, fmt.Errorf("%w: metadata slots are not dense (key %q)", ErrInconsistentState, key)
		}
		if rec.Index != slot {
			return nil, fmt.Errorf("%w: metadata key %q records index %d", ErrInconsistentState, key, rec.Index)
		}
		seen[slot] = true
		entries[slot] = Entry{Slot: slot, Identifier: rec.URL}
	}
	return entries, nil
}

// persistedPair reports whether both persisted files exist. It returns
// ErrInconsistentState when only one of them does.
func persistedPair(indexPath, metaPath string) (bool, error) {
	indexExists, err := fileExists(indexPath)
	if err != nil {
		return false, err
	}
	metaExists, err := fileExists(metaPath)
	if err != nil {
		return false, err
	}
	switch {
	case indexExists && metaExists:
		return true, nil
	case !indexExists && !metaExists:
		return false, nil
	case indexExists:
		return false, fmt.Errorf("%w: index file %s has no metadata file %s", ErrInconsistentState, indexPath, metaPath)
	default:
		return false, fmt.Errorf("%w: metadata file %s has no index file %s", ErrInconsistentState, metaPath, indexPath)
	}
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%s is a directory", path)
	}
	return true, nil
}

// writeFileAtomic writes through a temp file in the target directory and renames it into place.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	return nil
}
