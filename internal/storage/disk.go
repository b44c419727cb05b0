package storage

import (
	"fmt"
	"os"
)

// IndexUsage is the on-disk size of a persisted index pair.
type IndexUsage struct {
	IndexBytes    int64
	MetadataBytes int64
}

// Total returns the combined size of both files.
func (u IndexUsage) Total() int64 {
	return u.IndexBytes + u.MetadataBytes
}

// MeasureIndex stats the index file and its metadata file. A file that does
// not exist yet counts as 0, so an index that was never saved measures empty.
func MeasureIndex(indexPath, metaPath string) (IndexUsage, error) {
	var u IndexUsage
	var err error
	if u.IndexBytes, err = fileSize(indexPath); err != nil {
		return IndexUsage{}, err
	}
	if u.MetadataBytes, err = fileSize(metaPath); err != nil {
		return IndexUsage{}, err
	}
	return u, nil
}

func fileSize(path string) (int64, error) {
	if path == "" {
		return 0, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}
