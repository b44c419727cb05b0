package feature

import (
	"context"
	"fmt"
	"math"

	"github.com/hyperjump/utsushi/pkg/utils"
)

// histogramSize is the side length images are reduced to before binning.
const histogramSize = 64

// HistogramExtractor describes an image by its joint RGB colour histogram.
// It needs no model and is used when no ONNX runtime is available.
type HistogramExtractor struct {
	bins int
}

// NewHistogramExtractor returns an extractor with bins levels per channel,
// producing vectors of bins^3 components.
func NewHistogramExtractor(bins int) (*HistogramExtractor, error) {
	if bins < 2 || bins > 32 {
		return nil, fmt.Errorf("histogram bins must be between 2 and 32, got %d", bins)
	}
	return &HistogramExtractor{bins: bins}, nil
}

// Extract decodes data and returns its normalised colour histogram.
func (h *HistogramExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, _, err := Decode(data)
	if err != nil {
		return nil, err
	}
	rgb := Resize(ToRGB(img), histogramSize)

	counts := make([]float64, h.Dimensions())
	for i := 0; i+3 < len(rgb.Pix); i += 4 {
		r := int(rgb.Pix[i]) * h.bins / 256
		g := int(rgb.Pix[i+1]) * h.bins / 256
		b := int(rgb.Pix[i+2]) * h.bins / 256
		counts[(r*h.bins+g)*h.bins+b]++
	}

	// Square roots soften dominant colours (Hellinger embedding).
	out := make([]float32, len(counts))
	for i, c := range counts {
		out[i] = float32(math.Sqrt(c))
	}
	utils.NormalizeL2(out)
	return out, nil
}

// Dimensions returns bins^3.
func (h *HistogramExtractor) Dimensions() int {
	return h.bins * h.bins * h.bins
}

// Close is a no-op for HistogramExtractor.
func (h *HistogramExtractor) Close() error {
	return nil
}
