// Package feature turns images into fixed-length, unit-norm feature vectors.
package feature

import (
	"context"
	"errors"
)

// ErrUndecodable is returned when input bytes are not a supported image.
var ErrUndecodable = errors.New("undecodable image")

// Extractor produces feature vectors for images. Implementations are
// deterministic for the same input and return vectors of Dimensions()
// components with unit L2 norm.
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]float32, error)
	Dimensions() int
	Close() error
}
