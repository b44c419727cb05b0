package vector

import (
	"bufio"
	"container/heap"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

// flatMagic identifies the flat index file format.
var flatMagic = [4]byte{'U', 'V', 'X', '1'}

const flatHeaderSize = 12 // magic + dim + count

// FlatIndex is an exact nearest-neighbor index. Vectors live in one contiguous
// slice in slot order and every query scans all of them.
type FlatIndex struct {
	dimensions int
	data       []float32 // len == len(entries) * dimensions
	entries    []Entry
	opts       options
	mu         sync.RWMutex
}

// NewFlatIndex creates an empty flat index with the given dimension.
func NewFlatIndex(dimensions int, opts ...Option) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	f := &FlatIndex{dimensions: dimensions}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Add appends vectors and assigns them the next slots. The whole batch is
// validated before anything is stored.
func (f *FlatIndex) Add(ctx context.Context, vectors [][]float32, identifiers []string) error {
	if err := ValidateBatch(vectors, identifiers, f.dimensions); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	next := len(f.entries)
	for i, vec := range vectors {
		f.data = append(f.data, vec...)
		f.entries = append(f.entries, Entry{Slot: next + i, Identifier: identifiers[i]})
	}
	return nil
}

// ValidateBatch checks a batch against an index of the given dimension the
// same way Add does, without touching any index.
func ValidateBatch(vectors [][]float32, identifiers []string, dimensions int) error {
	if len(vectors) != len(identifiers) {
		return fmt.Errorf("%w: %d vectors, %d identifiers", ErrLengthMismatch, len(vectors), len(identifiers))
	}
	for i, vec := range vectors {
		if len(vec) != dimensions {
			return fmt.Errorf("%w: vector %d has %d components, expected %d", ErrDimensionMismatch, i, len(vec), dimensions)
		}
	}
	return nil
}

// candidate is a scored slot during a scan.
type candidate struct {
	slot int
	dist float64
}

// worseThan orders by distance, then by slot so that earlier inserts win ties.
func (c candidate) worseThan(o candidate) bool {
	if c.dist != o.dist {
		return c.dist > o.dist
	}
	return c.slot > o.slot
}

// worstFirst is a max-heap of the current top-k, worst candidate on top.
type worstFirst []candidate

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return h[i].worseThan(h[j]) }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Search returns the k nearest vectors by squared L2 distance, closest first.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d components, expected %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := len(f.entries)
	if n == 0 {
		return nil, nil
	}
	if k > n {
		k = n
	}
	h := make(worstFirst, 0, k)
	d := f.dimensions
	for slot := 0; slot < n; slot++ {
		c := candidate{slot: slot, dist: SquaredL2(query, f.data[slot*d:(slot+1)*d])}
		if len(h) < k {
			heap.Push(&h, c)
			continue
		}
		if h[0].worseThan(c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}
	results := make([]*Result, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		results[i] = &Result{
			Slot:       c.slot,
			Identifier: f.entries[c.slot].Identifier,
			Distance:   c.dist,
			Similarity: Similarity(c.dist),
		}
	}
	return results, nil
}

// Entries returns a copy of the slot table.
func (f *FlatIndex) Entries() []Entry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Size returns the number of stored vectors.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Clear drops all vectors and metadata; the next Add starts at slot 0.
func (f *FlatIndex) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = nil
	f.entries = nil
	return nil
}

// Save writes the vectors to path and the slot table to the paired metadata file.
// Format: magic (4), dimension (4), count (4), then count*dimension little-endian float32.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	err := writeFileAtomic(path, func(w io.Writer) error {
		if _, err := w.Write(flatMagic[:]); err != nil {
			return fmt.Errorf("write magic: %w", err)
		}
		header := []uint32{uint32(f.dimensions), uint32(len(f.entries))}
		if err := binary.Write(w, binary.LittleEndian, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, f.data); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return writeMetadata(f.opts.metadataFor(path), f.entries)
}

// Load replaces the index contents with the pair persisted at path. When neither
// file exists the index is reset to empty. On any error the index is unchanged.
func (f *FlatIndex) Load(path string) error {
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
	data, count, err := readFlatFile(path, f.dimensions)
	if err != nil {
		return err
	}
	entries, err := readMetadata(metaPath)
	if err != nil {
		return err
	}
	if len(entries) != count {
		return fmt.Errorf("%w: index holds %d vectors, metadata holds %d entries", ErrInconsistentState, count, len(entries))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = data
	f.entries = entries
	return nil
}

func readFlatFile(path string, dimensions int) ([]float32, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat index file: %w", err)
	}
	r := bufio.NewReader(file)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, 0, fmt.Errorf("read magic: %w", err)
	}
	if magic != flatMagic {
		return nil, 0, fmt.Errorf("not a flat index file: %s", path)
	}
	var header [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])
	if dim != dimensions {
		return nil, 0, fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, dimensions)
	}
	if want := int64(flatHeaderSize) + 4*int64(dim)*int64(count); info.Size() != want {
		return nil, 0, fmt.Errorf("index file %s is %d bytes, header implies %d", path, info.Size(), want)
	}
	data := make([]float32, dim*count)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, 0, fmt.Errorf("read vectors: %w", err)
	}
	return data, count, nil
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
