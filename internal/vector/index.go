// Package vector provides the feature vector index and similarity search.
package vector

import (
	"context"
	"errors"
)

var (
	// ErrDimensionMismatch is returned when a vector does not have the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrLengthMismatch is returned when vectors and identifiers differ in length.
	ErrLengthMismatch = errors.New("vectors and identifiers length mismatch")
	// ErrInvalidK is returned when a search asks for fewer than one result.
	ErrInvalidK = errors.New("k must be at least 1")
	// ErrInconsistentState is returned when the persisted index and metadata do not belong together.
	ErrInconsistentState = errors.New("inconsistent persisted index state")
)

// VectorIndex stores fixed-dimension feature vectors tagged with identifiers and
// answers k-nearest-neighbor queries by squared Euclidean distance.
//
// Slots are assigned in insertion order starting at 0 and are never reused;
// Clear discards everything and restarts numbering.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32, identifiers []string) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Entries() []Entry
	Size() int
	Dimensions() int
	Clear() error
	Save(path string) error
	Load(path string) error
	Type() string
	Close() error
}

// Entry is the metadata record of one stored vector.
type Entry struct {
	Slot       int
	Identifier string
}

// Result is a single nearest-neighbor hit.
type Result struct {
	Slot       int
	Identifier string
	Distance   float64 // squared L2
	Similarity float64 // max(0, 1 - Distance/2), full precision
}
