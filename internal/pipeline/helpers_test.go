package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/vector"
)

const testBins = 4

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for y := 0; y < 12; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// palette returns n visually distinct colours.
func palette(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		out[i] = color.RGBA{R: uint8(37 * i), G: uint8(255 - 23*i), B: uint8(91 * i), A: 255}
	}
	return out
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func newTestIndex(t *testing.T) (*vector.FlatIndex, *feature.HistogramExtractor) {
	t.Helper()
	ext, err := feature.NewHistogramExtractor(testBins)
	require.NoError(t, err)
	idx, err := vector.NewFlatIndex(ext.Dimensions())
	require.NoError(t, err)
	return idx, ext
}
