package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Object names of a snapshot inside a FileStore.
const (
	SnapshotIndexName    = "index.bin"
	SnapshotMetadataName = "metadata.json"
	SnapshotManifestName = "manifest.json"
)

// ErrNoSnapshot is returned when the store holds no complete snapshot.
var ErrNoSnapshot = errors.New("no snapshot in store")

// Manifest describes a published snapshot.
type Manifest struct {
	PublishedAt   time.Time `json:"published_at"`
	IndexBytes    int64     `json:"index_bytes"`
	MetadataBytes int64     `json:"metadata_bytes"`
}

// PublishSnapshot copies the index file and its metadata file to store.
// The manifest is written last, so a snapshot without one is incomplete.
func PublishSnapshot(ctx context.Context, store FileStore, indexPath, metaPath string) (*Manifest, error) {
	if err := store.Delete(ctx, SnapshotManifestName); err != nil {
		return nil, fmt.Errorf("clear manifest: %w", err)
	}
	indexBytes, err := upload(ctx, store, indexPath, SnapshotIndexName)
	if err != nil {
		return nil, err
	}
	metaBytes, err := upload(ctx, store, metaPath, SnapshotMetadataName)
	if err != nil {
		return nil, err
	}
	m := &Manifest{PublishedAt: time.Now().UTC(), IndexBytes: indexBytes, MetadataBytes: metaBytes}
	w, err := store.Write(ctx, SnapshotManifestName)
	if err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	if err := json.NewEncoder(w).Encode(m); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return m, nil
}

// FetchSnapshot restores the index and metadata files from store. Both files
// are downloaded to temporary names and only renamed into place once both
// match the manifest sizes.
func FetchSnapshot(ctx context.Context, store FileStore, indexPath, metaPath string) (*Manifest, error) {
	m, err := readManifest(ctx, store)
	if err != nil {
		return nil, err
	}
	indexTmp, err := download(ctx, store, SnapshotIndexName, indexPath, m.IndexBytes)
	if err != nil {
		return nil, err
	}
	defer os.Remove(indexTmp)
	metaTmp, err := download(ctx, store, SnapshotMetadataName, metaPath, m.MetadataBytes)
	if err != nil {
		return nil, err
	}
	defer os.Remove(metaTmp)

	if err := os.Rename(indexTmp, indexPath); err != nil {
		return nil, fmt.Errorf("install index: %w", err)
	}
	if err := os.Rename(metaTmp, metaPath); err != nil {
		return nil, fmt.Errorf("install metadata: %w", err)
	}
	return m, nil
}

func readManifest(ctx context.Context, store FileStore) (*Manifest, error) {
	r, err := store.Read(ctx, SnapshotManifestName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer r.Close()
	var m Manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func upload(ctx context.Context, store FileStore, localPath, name string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	w, err := store.Write(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	n, err := io.Copy(w, f)
	if err != nil {
		_ = w.Close()
		return 0, fmt.Errorf("upload %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("upload %s: %w", name, err)
	}
	return n, nil
}

// download writes the named object next to localPath and returns the temp file path.
func download(ctx context.Context, store FileStore, name, localPath string, want int64) (string, error) {
	r, err := store.Read(ctx, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s missing", ErrNoSnapshot, name)
		}
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	defer r.Close()

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(localPath)+".fetch-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n != want {
		err = fmt.Errorf("%s is %d bytes, manifest says %d", name, n, want)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	return tmp.Name(), nil
}
