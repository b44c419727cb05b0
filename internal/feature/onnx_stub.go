//go:build !cgo
// +build !cgo

package feature

import (
	"context"
	"errors"
)

// ONNXConfig describes an image model exported to ONNX (see onnx.go).
type ONNXConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	Dimensions int
	ImageSize  int
}

// ONNXExtractor stub type when built without CGO (see onnx.go for real implementation).
type ONNXExtractor struct{}

// NewONNXExtractor returns an error when built without CGO (ONNX not available).
func NewONNXExtractor(_ ONNXConfig) (*ONNXExtractor, error) {
	return nil, errors.New("ONNX extractor requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

// Extract is not available without CGO.
func (e *ONNXExtractor) Extract(ctx context.Context, data []byte) ([]float32, error) {
	return nil, errors.New("ONNX extractor requires CGO")
}

// Dimensions returns 0 without CGO.
func (e *ONNXExtractor) Dimensions() int { return 0 }

// Close is a no-op without CGO.
func (e *ONNXExtractor) Close() error { return nil }
