//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"
)

// FAISSIndex is a vector index backed by a FAISS IndexFlatL2. FAISS labels are
// the slot numbers, since vectors are only ever appended.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	entries    []Entry
	opts       options
	mu         sync.RWMutex
}

// NewFAISSIndex creates a FAISS L2 index with the given dimension.
func NewFAISSIndex(dimensions int, opts ...Option) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var index *C.FaissIndexFlatL2
	ret := C.faiss_IndexFlatL2_new_with(&index, C.idx_t(dimensions))
	if ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}

	f := &FAISSIndex{
		index:      (*C.FaissIndex)(index),
		dimensions: dimensions,
	}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f, nil
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add appends vectors and assigns them the next slots.
func (f *FAISSIndex) Add(ctx context.Context, vectors [][]float32, identifiers []string) error {
	if err := ValidateBatch(vectors, identifiers, f.dimensions); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Flatten vectors into contiguous array for FAISS
	n := len(vectors)
	flat := make([]float32, n*f.dimensions)
	for i, vec := range vectors {
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}

	ret := C.faiss_Index_add(
		f.index,
		C.idx_t(n),
		(*C.float)(unsafe.Pointer(&flat[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}

	next := len(f.entries)
	for i, id := range identifiers {
		f.entries = append(f.entries, Entry{Slot: next + i, Identifier: id})
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance, closest first.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k < 1 {
		return nil, ErrInvalidK
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)

	ret := C.faiss_Index_search(
		f.index,
		1, // nq (number of queries)
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]*Result, 0, k)
	for i := 0; i < k; i++ {
		slot := int(labels[i])
		if slot < 0 || slot >= len(f.entries) {
			continue
		}
		dist := float64(distances[i])
		results = append(results, &Result{
			Slot:       slot,
			Identifier: f.entries[slot].Identifier,
			Distance:   dist,
			Similarity: Similarity(dist),
		})
	}

	// FAISS does not promise an order among equal distances. Only the k labels
	// it returned are reordered here, so a tie straddling the k-th position
	// may keep a higher slot and drop a lower one. FlatIndex has no such gap.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Slot < results[j].Slot
	})

	return results, nil
}

// Entries returns a copy of the slot table.
func (f *FAISSIndex) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Size returns the number of stored vectors.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Clear drops all vectors and metadata.
func (f *FAISSIndex) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ret := C.faiss_Index_reset(f.index); ret != 0 {
		return fmt.Errorf("failed to reset FAISS index: %s", faissLastError())
	}
	f.entries = nil
	return nil
}

// Save writes the FAISS index to path and the slot table to the paired metadata file.
func (f *FAISSIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	if err := ensureParentDir(path); err != nil {
		return err
	}
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	return writeMetadata(f.opts.metadataFor(path), f.entries)
}

// Load replaces the index with the pair persisted at path. When neither file
// exists the index is reset to empty.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	metaPath := f.opts.metadataFor(path)
	exists, err := persistedPair(path, metaPath)
	if err != nil {
		return err
	}
	if !exists {
		return f.Clear()
	}
	entries, err := readMetadata(metaPath)
	if err != nil {
		return err
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &loaded); ret != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, d, f.dimensions)
	}
	if n := int(C.faiss_Index_ntotal(loaded)); n != len(entries) {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("%w: index holds %d vectors, metadata holds %d entries", ErrInconsistentState, n, len(entries))
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
	}
	f.index = loaded
	f.entries = entries
	return nil
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
